package domain

import "time"

// ParseStatus classifies how completely a product page was turned into
// a structured record.
type ParseStatus string

const (
	StatusOK      ParseStatus = "ok"
	StatusPartial ParseStatus = "partial"
	StatusBlocked ParseStatus = "blocked"
	StatusError   ParseStatus = "error"
)

// CompareRequest is the payload for the batch comparison API.
type CompareRequest struct {
	URLs         []string `json:"urls"`
	UseCache     bool     `json:"use_cache"`
	ForceRefresh bool     `json:"force_refresh"` // bypass cache and refetch
}

// SearchRequest is the payload for the cross-platform search API.
type SearchRequest struct {
	Query       string `json:"query"`
	MaxPages    int    `json:"max_pages"`
	MaxProducts int    `json:"max_products"`
}

// FetchJob is one unit of batch work. Index ties the job back to the
// caller-supplied ordering.
type FetchJob struct {
	Index        int
	URL          string
	UseCache     bool
	ForceRefresh bool
}

// RawRecord holds fields as extracted from a page, before normalization.
// String fields keep whatever shape the page used.
type RawRecord struct {
	Platform         string
	URL              string
	Title            string
	Price            string
	Currency         string
	Image            string
	ShippingText     string
	OfficialStore    bool
	Rating           float64
	ReviewCount      int
	InstallmentCount int
	InstallmentValue float64
	InstallmentTotal float64
	PreviousPrice    string
	DiscountPercent  float64
	Blocked          bool
	CollectedAt      time.Time
}

// ProductRecord is the normalized view of a product page.
type ProductRecord struct {
	Platform            string      `json:"platform"`
	Title               string      `json:"title,omitempty"`
	Price               float64     `json:"price,omitempty"`
	Currency            string      `json:"currency"`
	Image               string      `json:"image,omitempty"`
	FreeShipping        string      `json:"free_shipping"` // "true", "false" or "unknown"
	ShippingText        string      `json:"shipping_text,omitempty"`
	OfficialStore       bool        `json:"official_store"`
	Rating              float64     `json:"rating,omitempty"`
	ReviewCount         int         `json:"review_count,omitempty"`
	ProductURL          string      `json:"product_url"`
	CollectedAt         time.Time   `json:"collected_at"`
	PreviousPrice       float64     `json:"previous_price,omitempty"`
	DiscountPercent     float64     `json:"discount_percent,omitempty"`
	InstallmentCount    int         `json:"installment_count,omitempty"`
	InstallmentValue    float64     `json:"installment_value,omitempty"`
	InstallmentTotal    float64     `json:"installment_total,omitempty"`
	InstallmentAccuracy float64     `json:"installment_accuracy,omitempty"` // 0-100, set by the detail pass
	ParseStatus         ParseStatus `json:"parse_status"`
	MissingFields       []string    `json:"missing_fields,omitempty"`
}

// FetchResult is the per-job outcome returned by the orchestrator.
// Results are always reported in job-index order.
type FetchResult struct {
	Index   int            `json:"-"`
	Success bool           `json:"success"`
	URL     string         `json:"url"`
	Status  ParseStatus    `json:"status"`
	Data    *ProductRecord `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// CompareResponse aggregates a processed batch.
type CompareResponse struct {
	TotalURLs  int           `json:"total_urls"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Products   []FetchResult `json:"products"`
	Warnings   []string      `json:"warnings"`
}

// PriceSnapshot is one append-only price observation.
type PriceSnapshot struct {
	URL         string      `json:"url"`
	Platform    string      `json:"platform"`
	Title       string      `json:"title,omitempty"`
	Price       float64     `json:"price"`
	Currency    string      `json:"currency"`
	CollectedAt time.Time   `json:"collected_at"`
	ParseStatus ParseStatus `json:"parse_status"`
}

// HistoryResponse wraps the snapshot history for one URL.
type HistoryResponse struct {
	URL     string          `json:"url"`
	Total   int             `json:"total"`
	History []PriceSnapshot `json:"history"`
}

// Package extract turns raw page bodies into product records: field
// extraction from embedded JSON and markup, then normalization.
package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/pricewatch/internal/domain"
	"github.com/user/pricewatch/internal/fetch"
	"github.com/user/pricewatch/internal/urlkey"
)

// Extractor pulls product fields out of an HTML page. Embedded
// schema.org JSON is preferred; selector fallbacks fill the gaps.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// schemaProduct is the subset of a schema.org Product node we read.
type schemaProduct struct {
	Type   string          `json:"@type"`
	Name   string          `json:"name"`
	Image  json.RawMessage `json:"image"`
	Offers json.RawMessage `json:"offers"`
	Rating *struct {
		RatingValue json.Number `json:"ratingValue"`
		ReviewCount json.Number `json:"reviewCount"`
	} `json:"aggregateRating"`
}

type schemaOffer struct {
	Price         json.Number `json:"price"`
	PriceCurrency string      `json:"priceCurrency"`
}

// Extract parses a product page. A page carrying block markers comes back
// with Blocked set and no fields; extraction failures leave fields empty
// rather than erroring, the normalizer decides how complete the record is.
func (e *Extractor) Extract(url, body string) domain.RawRecord {
	rec := domain.RawRecord{
		Platform:    urlkey.Platform(url),
		URL:         url,
		CollectedAt: time.Now(),
	}
	if body == "" {
		return rec
	}
	if fetch.LooksBlocked(body) {
		rec.Blocked = true
		return rec
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return rec
	}

	e.fromSchemaOrg(doc, &rec)
	e.fromMarkup(doc, &rec)
	return rec
}

// fromSchemaOrg reads application/ld+json Product blocks.
func (e *Extractor) fromSchemaOrg(doc *goquery.Document, rec *domain.RawRecord) {
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var products []schemaProduct
		var one schemaProduct
		if err := json.Unmarshal([]byte(raw), &one); err == nil {
			products = append(products, one)
		} else if err := json.Unmarshal([]byte(raw), &products); err != nil {
			return true
		}

		for _, p := range products {
			if p.Type != "Product" {
				continue
			}
			if rec.Title == "" {
				rec.Title = strings.TrimSpace(p.Name)
			}
			if img := firstString(p.Image); img != "" && rec.Image == "" {
				rec.Image = img
			}
			if offer, ok := firstOffer(p.Offers); ok {
				if rec.Price == "" {
					rec.Price = offer.Price.String()
				}
				if rec.Currency == "" {
					rec.Currency = offer.PriceCurrency
				}
			}
			if p.Rating != nil {
				if v, err := p.Rating.RatingValue.Float64(); err == nil {
					rec.Rating = v
				}
				if n, err := p.Rating.ReviewCount.Int64(); err == nil {
					rec.ReviewCount = int(n)
				}
			}
			return false
		}
		return true
	})
}

// fromMarkup fills fields the embedded JSON did not provide.
func (e *Extractor) fromMarkup(doc *goquery.Document, rec *domain.RawRecord) {
	if rec.Title == "" {
		for _, sel := range []string{"#productTitle", "h1.ui-pdp-title", "h1"} {
			if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
				rec.Title = t
				break
			}
		}
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if rec.Price == "" {
		if content, ok := doc.Find(`meta[itemprop="price"]`).First().Attr("content"); ok {
			rec.Price = content
		}
	}
	if rec.Price == "" {
		for _, sel := range []string{
			".a-price .a-offscreen",
			".andes-money-amount__fraction",
			".price-tag-fraction",
		} {
			if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
				rec.Price = t
				break
			}
		}
	}

	if rec.Image == "" {
		if src, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok {
			rec.Image = src
		}
	}

	if rec.ShippingText == "" {
		for _, sel := range []string{
			"#deliveryBlockMessage",
			"#mir-layout-DELIVERY_BLOCK",
			".ui-pdp-media__title",
		} {
			if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
				rec.ShippingText = collapseSpaces(t)
				break
			}
		}
	}

	if !rec.OfficialStore {
		sellerText := strings.ToLower(doc.Find(".ui-pdp-seller__header__title, #sellerProfileTriggerId").Text())
		rec.OfficialStore = strings.Contains(sellerText, "loja oficial") ||
			strings.Contains(sellerText, "official store")
	}

	e.installments(doc, rec)
}

var installmentPattern = regexp.MustCompile(`(?i)(?:em\s+)?(\d{1,2})\s*x\s*(?:de\s*)?(?:R\$)?\s*([\d.,]+)`)

// installments parses "12x R$ 99,90" style installment offers.
func (e *Extractor) installments(doc *goquery.Document, rec *domain.RawRecord) {
	if rec.InstallmentCount != 0 {
		return
	}
	text := doc.Find("#installmentCalculatorTooltipTrigger, .ui-pdp-payment, .a-section.a-spacing-micro").Text()
	m := installmentPattern.FindStringSubmatch(text)
	if m == nil {
		return
	}
	count, err := strconv.Atoi(m[1])
	if err != nil || count < 2 {
		return
	}
	value, ok := ParsePrice(m[2])
	if !ok {
		return
	}
	rec.InstallmentCount = count
	rec.InstallmentValue = value
	rec.InstallmentTotal = float64(count) * value
}

func firstString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}

func firstOffer(raw json.RawMessage) (schemaOffer, bool) {
	if len(raw) == 0 {
		return schemaOffer{}, false
	}
	var one schemaOffer
	if err := json.Unmarshal(raw, &one); err == nil && one.Price.String() != "" {
		return one, true
	}
	var list []schemaOffer
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, o := range list {
			if o.Price.String() != "" {
				return o, true
			}
		}
	}
	return schemaOffer{}, false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

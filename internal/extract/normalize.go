package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/user/pricewatch/internal/domain"
)

// Normalizer validates and normalizes raw records into product records.
type Normalizer struct{}

func NewNormalizer() *Normalizer { return &Normalizer{} }

// Normalize converts a raw record: price text to a number, currency to an
// ISO code, shipping text to a free-shipping verdict, and derives the
// parse status with the list of missing fields.
func (n *Normalizer) Normalize(raw domain.RawRecord) domain.ProductRecord {
	rec := domain.ProductRecord{
		Platform:         raw.Platform,
		Title:            raw.Title,
		Currency:         normalizeCurrency(raw.Currency),
		Image:            raw.Image,
		ShippingText:     raw.ShippingText,
		OfficialStore:    raw.OfficialStore,
		Rating:           raw.Rating,
		ReviewCount:      raw.ReviewCount,
		ProductURL:       raw.URL,
		CollectedAt:      raw.CollectedAt,
		DiscountPercent:  raw.DiscountPercent,
		InstallmentCount: raw.InstallmentCount,
		InstallmentValue: raw.InstallmentValue,
		InstallmentTotal: raw.InstallmentTotal,
		FreeShipping:     interpretShipping(raw.ShippingText),
	}

	if price, ok := ParsePrice(raw.Price); ok {
		rec.Price = price
	}
	if prev, ok := ParsePrice(raw.PreviousPrice); ok {
		rec.PreviousPrice = prev
	}

	if raw.Blocked {
		rec.ParseStatus = domain.StatusBlocked
		return rec
	}

	rec.ParseStatus, rec.MissingFields = parseStatus(rec)
	return rec
}

// parseStatus derives the record's completeness. Title, price and URL are
// essential; image and shipping information are important but downgrade
// the record only to partial.
func parseStatus(rec domain.ProductRecord) (domain.ParseStatus, []string) {
	var missing []string
	if rec.Title == "" {
		missing = append(missing, "title")
	}
	if rec.Price <= 0 {
		missing = append(missing, "price")
	}
	if rec.ProductURL == "" {
		missing = append(missing, "product_url")
	}
	if len(missing) > 0 {
		return domain.StatusPartial, missing
	}

	if rec.Image == "" {
		missing = append(missing, "image")
	}
	if rec.FreeShipping == "unknown" {
		missing = append(missing, "shipping")
	}
	if len(missing) > 0 {
		return domain.StatusPartial, missing
	}
	return domain.StatusOK, nil
}

var digitsPattern = regexp.MustCompile(`\d`)

// ParsePrice converts marketplace price text ("R$ 1.299,90", "1299.90")
// to a float. Returns ok=false when no usable number is present.
func ParsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !digitsPattern.MatchString(s) {
		return 0, false
	}

	cleaned := strings.NewReplacer("R$", "", "r$", "", "€", "", "$", "", "£", "", "¥", "", " ", "", " ", "").Replace(s)

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		// Brazilian format: dots are thousands separators, comma is decimal.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case hasComma:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = parts[0] + "." + parts[1]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

var currencyMap = map[string]string{
	"R$": "BRL", "REAL": "BRL", "REAIS": "BRL", "BRL": "BRL",
	"USD": "USD", "EUR": "EUR", "GBP": "GBP", "ARS": "ARS",
}

func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return "BRL"
	}
	if mapped, ok := currencyMap[c]; ok {
		return mapped
	}
	if len(c) >= 3 {
		return c[:3]
	}
	return "BRL"
}

var freeKeywords = []string{
	"frete grátis", "frete gratis", "frete gratuito",
	"entrega grátis", "entrega gratis", "entrega gratuita",
	"envio grátis", "envio gratis", "envio gratuito",
	"free shipping", "frete zero",
}

var paidKeywords = []string{
	"frete a partir de", "custo de envio", "taxa de entrega",
	"valor do frete", "calcular frete", "consulte o frete",
}

var moneyPattern = regexp.MustCompile(`(?i)R\$\s*\d`)

// interpretShipping reads delivery text into "true", "false" or "unknown".
func interpretShipping(text string) string {
	if text == "" {
		return "unknown"
	}
	lower := strings.ToLower(text)
	for _, kw := range freeKeywords {
		if strings.Contains(lower, kw) {
			return "true"
		}
	}
	for _, kw := range paidKeywords {
		if strings.Contains(lower, kw) {
			return "false"
		}
	}
	if moneyPattern.MatchString(text) {
		return "false"
	}
	return "unknown"
}

package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/user/pricewatch/internal/domain"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"R$ 68,34", 68.34, true},
		{"R$1.299,90", 1299.90, true},
		{"1299.90", 1299.90, true},
		{"68,34", 68.34, true},
		{"1,299", 1299, true}, // comma as thousands separator
		{"R$ 2.500", 2.500, true},
		{"", 0, false},
		{"preço indisponível", 0, false},
		{"R$ 0,00", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParsePrice(tt.in)
		assert.Equal(t, tt.ok, ok, "ParsePrice(%q) ok", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.001, "ParsePrice(%q)", tt.in)
		}
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := map[string]string{
		"":     "BRL",
		"R$":   "BRL",
		"real": "BRL",
		"BRL":  "BRL",
		"usd":  "USD",
		"EUR":  "EUR",
		"MXN":  "MXN",
		"X":    "BRL",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeCurrency(in), "normalizeCurrency(%q)", in)
	}
}

func TestInterpretShipping(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"", "unknown"},
		{"Frete grátis para todo o Brasil", "true"},
		{"Free shipping on orders", "true"},
		{"Frete a partir de R$ 12,90", "false"},
		{"Entrega: R$ 15", "false"},
		{"Receba até sexta-feira", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, interpretShipping(tt.text), "interpretShipping(%q)", tt.text)
	}
}

func TestNormalizeCompleteRecord(t *testing.T) {
	n := NewNormalizer()
	rec := n.Normalize(domain.RawRecord{
		Platform:     "amazon.com.br",
		URL:          "https://www.amazon.com.br/dp/B0ABC",
		Title:        "Echo Dot",
		Price:        "R$ 299,00",
		Currency:     "R$",
		Image:        "https://img.example/echo.jpg",
		ShippingText: "Frete GRÁTIS",
		CollectedAt:  time.Now(),
	})

	assert.Equal(t, domain.StatusOK, rec.ParseStatus)
	assert.Empty(t, rec.MissingFields)
	assert.InDelta(t, 299.0, rec.Price, 0.001)
	assert.Equal(t, "BRL", rec.Currency)
	assert.Equal(t, "true", rec.FreeShipping)
}

func TestNormalizeMissingEssentialsIsPartial(t *testing.T) {
	n := NewNormalizer()
	rec := n.Normalize(domain.RawRecord{
		Platform:    "amazon.com.br",
		URL:         "https://www.amazon.com.br/dp/B0ABC",
		Title:       "Echo Dot",
		CollectedAt: time.Now(),
	})

	assert.Equal(t, domain.StatusPartial, rec.ParseStatus)
	assert.Contains(t, rec.MissingFields, "price")
}

func TestNormalizeMissingImportantIsPartial(t *testing.T) {
	n := NewNormalizer()
	rec := n.Normalize(domain.RawRecord{
		Platform:    "amazon.com.br",
		URL:         "https://www.amazon.com.br/dp/B0ABC",
		Title:       "Echo Dot",
		Price:       "299,00",
		CollectedAt: time.Now(),
	})

	assert.Equal(t, domain.StatusPartial, rec.ParseStatus)
	assert.Contains(t, rec.MissingFields, "image")
	assert.Contains(t, rec.MissingFields, "shipping")
}

func TestNormalizeBlocked(t *testing.T) {
	n := NewNormalizer()
	rec := n.Normalize(domain.RawRecord{
		Platform:    "amazon.com.br",
		URL:         "https://www.amazon.com.br/dp/B0ABC",
		Blocked:     true,
		CollectedAt: time.Now(),
	})

	assert.Equal(t, domain.StatusBlocked, rec.ParseStatus)
}

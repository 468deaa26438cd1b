package listing

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/fetch"
)

const mlListingPage = `<html><body><ol>
<li class="ui-search-layout__item">
  <a href="https://www.mercadolivre.com.br/echo-dot/p/MLB1001"><h2 class="ui-search-item__title">Echo Dot 5ª geração</h2></a>
  <span class="andes-money-amount__fraction">299</span><span class="andes-money-amount__cents">90</span>
  <img data-src="https://http2.mlstatic.com/echo.jpg">
  <div class="poly-component__shipping">Frete grátis</div>
</li>
<li class="ui-search-layout__item">
  <a href="/echo-pop/p/MLB1002"><h2 class="ui-search-item__title">Echo Pop</h2></a>
  <span class="andes-money-amount__fraction">199</span>
</li>
<li class="ui-search-layout__item">
  <span class="andes-money-amount__fraction">159</span>
</li>
</ol></body></html>`

const amazonListingPage = `<html><body>
<div data-component-type="s-search-result" data-asin="B09B8V1LZ3">
  <h2><a href="/dp/B09B8V1LZ3"><span>Echo Dot (5ª geração)</span></a></h2>
  <span class="a-price"><span class="a-offscreen">R$ 279,00</span></span>
  <img class="s-image" src="https://m.media-amazon.com/echo.jpg">
</div>
</body></html>`

type pageFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string, _, _ bool) (string, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	body, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no fixture for %s", url)
	}
	return body, nil
}

const (
	mlURL     = "https://lista.mercadolivre.com.br/echo-dot"
	amazonURL = "https://www.amazon.com.br/s?k=echo+dot"
)

func TestSearchMergesPlatforms(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		mlURL:     mlListingPage,
		amazonURL: amazonListingPage,
	}}
	s := NewScraper(f, zap.NewNop())

	records, warnings := s.Search(context.Background(), "echo dot", 1, 20)

	require.Len(t, records, 3)
	assert.Empty(t, warnings)

	assert.Equal(t, "mercadolivre.com.br", records[0].Platform)
	assert.Equal(t, "Echo Dot 5ª geração", records[0].Title)
	assert.Equal(t, "299,90", records[0].Price)
	assert.Equal(t, "https://www.mercadolivre.com.br/echo-dot/p/MLB1001", records[0].URL)
	assert.Equal(t, "https://http2.mlstatic.com/echo.jpg", records[0].Image)
	assert.Contains(t, records[0].ShippingText, "Frete grátis")

	// Relative links resolve against the platform base.
	assert.Equal(t, "https://www.mercadolivre.com.br/echo-pop/p/MLB1002", records[1].URL)

	assert.Equal(t, "amazon.com.br", records[2].Platform)
	assert.Equal(t, "https://www.amazon.com.br/dp/B09B8V1LZ3", records[2].URL)
	assert.Equal(t, "R$ 279,00", records[2].Price)
}

func TestSearchSkipsItemsWithoutTitleOrURL(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		mlURL:     mlListingPage,
		amazonURL: `<html><body></body></html>`,
	}}
	s := NewScraper(f, zap.NewNop())

	records, _ := s.Search(context.Background(), "echo dot", 1, 20)
	for _, rec := range records {
		assert.NotEmpty(t, rec.Title)
		assert.NotEmpty(t, rec.URL)
	}
}

func TestSearchCapsProducts(t *testing.T) {
	var items strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&items, `<li class="ui-search-layout__item">
			<a href="/p/MLB%d"><h2 class="ui-search-item__title">Produto %d</h2></a>
			<span class="andes-money-amount__fraction">%d</span></li>`, i, i, 100+i)
	}
	f := &pageFetcher{pages: map[string]string{
		mlURL:     "<html><body><ol>" + items.String() + "</ol></body></html>",
		amazonURL: `<html><body></body></html>`,
	}}
	s := NewScraper(f, zap.NewNop())

	records, _ := s.Search(context.Background(), "echo dot", 1, 4)
	assert.Len(t, records, 4)
}

func TestSearchBlockedPlatformBecomesWarning(t *testing.T) {
	f := &pageFetcher{
		pages: map[string]string{amazonURL: amazonListingPage},
		errs: map[string]error{
			mlURL: &fetch.Error{Kind: fetch.KindBlocked, StatusCode: 403, URL: mlURL},
		},
	}
	s := NewScraper(f, zap.NewNop())

	records, warnings := s.Search(context.Background(), "echo dot", 1, 20)

	require.Len(t, records, 1, "the healthy platform still returns results")
	assert.Equal(t, "amazon.com.br", records[0].Platform)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Mercado Livre")
	assert.Contains(t, warnings[0], "blocked")
}

func TestSearchAmazonCaptchaBodyIsBlocked(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		mlURL:     `<html><body></body></html>`,
		amazonURL: `<html><body>resolve this CAPTCHA to continue</body></html>`,
	}}
	s := NewScraper(f, zap.NewNop())

	_, warnings := s.Search(context.Background(), "echo dot", 1, 20)
	require.NotEmpty(t, warnings)
	assert.Contains(t, strings.Join(warnings, "; "), "Amazon: blocked")
}

func TestSearchPaginatesMercadoLivre(t *testing.T) {
	f := &pageFetcher{pages: map[string]string{
		mlURL: mlListingPage,
		mlURL + "_Desde_49": `<html><body><ol>
			<li class="ui-search-layout__item">
			<a href="/p/MLB2001"><h2 class="ui-search-item__title">Echo Show</h2></a>
			<span class="andes-money-amount__fraction">549</span></li>
			</ol></body></html>`,
		amazonURL: `<html><body></body></html>`,
	}}
	s := NewScraper(f, zap.NewNop())

	records, _ := s.Search(context.Background(), "echo dot", 2, 20)

	titles := make([]string, len(records))
	for i, r := range records {
		titles[i] = r.Title
	}
	assert.Contains(t, titles, "Echo Show")
	assert.Contains(t, f.calls, mlURL+"_Desde_49")
}

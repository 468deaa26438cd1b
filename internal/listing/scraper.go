// Package listing scrapes marketplace search-result pages into raw
// product records.
package listing

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/domain"
	"github.com/user/pricewatch/internal/fetch"
)

// Fetcher is the page-fetch dependency, satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string, useCache, forceRefresh bool) (string, error)
}

// Scraper searches the supported marketplaces. Each platform failure
// becomes a warning, never an error for the whole search.
type Scraper struct {
	fetcher Fetcher
	logger  *zap.Logger
}

func NewScraper(f Fetcher, l *zap.Logger) *Scraper {
	return &Scraper{fetcher: f, logger: l}
}

// Search queries every supported platform and merges the results, capped
// at maxProducts per platform. Returned warnings name the platform that
// failed and why.
func (s *Scraper) Search(ctx context.Context, query string, maxPages, maxProducts int) ([]domain.RawRecord, []string) {
	if maxPages <= 0 {
		maxPages = 1
	}
	if maxProducts <= 0 {
		maxProducts = 20
	}

	var records []domain.RawRecord
	var warnings []string

	ml, err := s.searchMercadoLivre(ctx, query, maxPages, maxProducts)
	if err != nil {
		warnings = append(warnings, platformWarning("Mercado Livre", err))
		s.logger.Warn("mercado livre search failed", zap.String("query", query), zap.Error(err))
	}
	records = append(records, ml...)

	amazon, err := s.searchAmazon(ctx, query, maxPages, maxProducts)
	if err != nil {
		warnings = append(warnings, platformWarning("Amazon", err))
		s.logger.Warn("amazon search failed", zap.String("query", query), zap.Error(err))
	}
	records = append(records, amazon...)

	if len(records) == 0 && len(warnings) == 0 {
		warnings = append(warnings, "no products found on any platform")
	}
	return records, warnings
}

func (s *Scraper) searchMercadoLivre(ctx context.Context, query string, maxPages, maxProducts int) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	for page := 0; page < maxPages && len(records) < maxProducts; page++ {
		pageURL := "https://lista.mercadolivre.com.br/" + url.PathEscape(strings.ReplaceAll(query, " ", "-"))
		if page > 0 {
			// Mercado Livre paginates by result offset, 48 items per page.
			pageURL = fmt.Sprintf("%s_Desde_%d", pageURL, page*48+1)
		}

		body, err := s.fetcher.Fetch(ctx, pageURL, true, false)
		if err != nil {
			if len(records) > 0 {
				break // keep what earlier pages produced
			}
			return nil, err
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			return records, err
		}

		doc.Find("li.ui-search-layout__item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
			if len(records) >= maxProducts {
				return false
			}
			rec := domain.RawRecord{
				Platform:    "mercadolivre.com.br",
				CollectedAt: time.Now(),
			}
			rec.Title = strings.TrimSpace(item.Find("h2.ui-search-item__title, .poly-component__title").First().Text())
			rec.Price = strings.TrimSpace(item.Find(".andes-money-amount__fraction").First().Text())
			if cents := strings.TrimSpace(item.Find(".andes-money-amount__cents").First().Text()); cents != "" {
				rec.Price = rec.Price + "," + cents
			}
			if href, ok := item.Find("a").First().Attr("href"); ok {
				rec.URL = absoluteURL("https://www.mercadolivre.com.br", href)
			}
			if src, ok := item.Find("img").First().Attr("data-src"); ok {
				rec.Image = src
			} else if src, ok := item.Find("img").First().Attr("src"); ok {
				rec.Image = src
			}
			rec.ShippingText = strings.TrimSpace(item.Find(".poly-component__shipping, .ui-search-item__shipping").First().Text())

			if rec.Title != "" && rec.URL != "" {
				records = append(records, rec)
			}
			return true
		})

		if doc.Find("li.ui-search-layout__item").Length() == 0 {
			break
		}
	}
	return records, nil
}

func (s *Scraper) searchAmazon(ctx context.Context, query string, maxPages, maxProducts int) ([]domain.RawRecord, error) {
	var records []domain.RawRecord
	for page := 1; page <= maxPages && len(records) < maxProducts; page++ {
		pageURL := "https://www.amazon.com.br/s?k=" + url.QueryEscape(query)
		if page > 1 {
			pageURL = fmt.Sprintf("%s&page=%d", pageURL, page)
		}

		body, err := s.fetcher.Fetch(ctx, pageURL, true, false)
		if err != nil {
			if len(records) > 0 {
				break
			}
			return nil, err
		}
		if fetch.LooksBlocked(body) {
			return records, &fetch.Error{Kind: fetch.KindBlocked, URL: pageURL}
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			return records, err
		}

		doc.Find(`div[data-component-type="s-search-result"]`).EachWithBreak(func(_ int, item *goquery.Selection) bool {
			if len(records) >= maxProducts {
				return false
			}
			rec := domain.RawRecord{
				Platform:    "amazon.com.br",
				CollectedAt: time.Now(),
			}
			rec.Title = strings.TrimSpace(item.Find("h2 span").First().Text())
			rec.Price = strings.TrimSpace(item.Find(".a-price .a-offscreen").First().Text())
			if asin, ok := item.Attr("data-asin"); ok && asin != "" {
				rec.URL = "https://www.amazon.com.br/dp/" + asin
			} else if href, ok := item.Find("h2 a").First().Attr("href"); ok {
				rec.URL = absoluteURL("https://www.amazon.com.br", href)
			}
			if src, ok := item.Find("img.s-image").First().Attr("src"); ok {
				rec.Image = src
			}
			rec.ShippingText = strings.TrimSpace(item.Find(".udm-primary-delivery-message, .a-row.s-align-children-center").First().Text())

			if rec.Title != "" && rec.URL != "" {
				records = append(records, rec)
			}
			return true
		})

		if doc.Find(`div[data-component-type="s-search-result"]`).Length() == 0 {
			break
		}
	}
	return records, nil
}

func absoluteURL(base, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return base + href
}

// platformWarning renders a classified failure into a caller-facing note.
func platformWarning(platform string, err error) string {
	switch fetch.KindOf(err) {
	case fetch.KindBlocked:
		return fmt.Sprintf("%s: blocked (403/captcha)", platform)
	case fetch.KindRetryable:
		return fmt.Sprintf("%s: temporarily unavailable", platform)
	default:
		return fmt.Sprintf("%s: %s", platform, truncate(err.Error(), 100))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}


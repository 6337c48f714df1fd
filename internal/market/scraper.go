package market

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// source is one candidate public page for a Casablanca-listed instrument,
// with the CSS selectors that usually carry the quote.
type source struct {
	url       string
	selectors []string
}

// ScraperInterface defines the interface for the Casablanca price scraper.
type ScraperInterface interface {
	PriceIAM(ctx context.Context) (float64, error)
}

// Scraper extracts live prices for Casablanca-listed instruments from public
// market pages. Only Maroc Telecom (IAM) is supported; international tickers
// go through the QuoteClient instead.
type Scraper struct {
	client  *resty.Client
	logger  *zap.Logger
	sources []source
}

// ensure Scraper implements the interface
var _ ScraperInterface = (*Scraper)(nil)

// NewScraper creates a scraper with the default source list.
func NewScraper(logger *zap.Logger) *Scraper {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	return &Scraper{
		client: client,
		logger: logger,
		sources: []source{
			{
				url:       "https://www.richbourse.com/valeurs/itissalat-al-maghrib-iam",
				selectors: []string{".price", ".instrument-price", ".last", ".current", "[data-field='price']"},
			},
			{
				url:       "https://boursenews.ma/marches/valeurs/IAM",
				selectors: []string{".price", ".valeur__price", ".cours", "#price"},
			},
			{
				url:       "https://lematin.ma/bourse",
				selectors: []string{".price", ".cours", "#price"},
			},
		},
	}
}

// PriceIAM scrapes the current Maroc Telecom price, trying each source in
// order of preference.
func (s *Scraper) PriceIAM(ctx context.Context) (float64, error) {
	var lastErr error
	for _, src := range s.sources {
		price, err := s.scrape(ctx, src)
		if err != nil {
			s.logger.Warn("Scrape source failed", zap.String("url", src.url), zap.Error(err))
			lastErr = err
			continue
		}
		return price, nil
	}
	return 0, fmt.Errorf("could not scrape IAM price from any source: %w", lastErr)
}

func (s *Scraper) scrape(ctx context.Context, src source) (float64, error) {
	resp, err := s.client.R().SetContext(ctx).Get(src.url)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch %s: %w", src.url, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetch %s returned status %s", src.url, resp.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", src.url, err)
	}

	// Explicit selectors first.
	for _, sel := range src.selectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if price, ok := parsePrice(strings.TrimSpace(el.Text())); ok {
			return price, nil
		}
	}

	// Fallback: numeric scan near quote keywords in the page text.
	if price, ok := scanKeywordPrice(doc.Find("body").Text()); ok {
		return price, nil
	}

	return 0, fmt.Errorf("no price found at %s", src.url)
}

var (
	priceRe   = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})*(?:[.,]\d+)|\d+(?:[.,]\d+)?`)
	keywordRe = regexp.MustCompile(`(?i)(?:cours|dernier|prix)\D{0,40}(\d+[.,]\d+)`)
)

// parsePrice extracts the first float-looking number from text, normalizing
// thousands and decimal separators. When both comma and dot are present the
// comma is treated as a thousands separator; a lone comma is a decimal comma.
// Dot-thousands with comma-decimal ("1.234,56") is out of scope: Casablanca
// quotes never carry thousands separators.
func parsePrice(text string) (float64, bool) {
	num := priceRe.FindString(text)
	if num == "" {
		return 0, false
	}
	if strings.Contains(num, ",") && strings.Contains(num, ".") {
		num = strings.ReplaceAll(num, ",", "")
	} else {
		num = strings.ReplaceAll(num, ",", ".")
	}
	price, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// scanKeywordPrice looks for a number following a quote keyword such as
// "cours" or "dernier".
func scanKeywordPrice(text string) (float64, bool) {
	m := keywordRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	return parsePrice(m[1])
}

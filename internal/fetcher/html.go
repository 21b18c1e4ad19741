package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultAcceptLanguage = "en-US,en;q=0.9"
	defaultSelector       = "span.a-offscreen"

	// product pages are large but anything past this is not a price page
	maxBodyBytes = 8 << 20
)

// HTMLOptions parameterise the page scraping fetcher.
type HTMLOptions struct {
	Selector       string
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
	Breaker        BreakerOptions
	Client         *http.Client
}

// HTML fetches a product page and reads the first element matching Selector.
type HTML struct {
	opts     HTMLOptions
	client   *http.Client
	breakers *breakerSet
	logger   zerolog.Logger
}

// NewHTML constructs a page scraping fetcher.
func NewHTML(opts HTMLOptions, logger zerolog.Logger) *HTML {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if strings.TrimSpace(opts.Selector) == "" {
		opts.Selector = defaultSelector
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	if strings.TrimSpace(opts.AcceptLanguage) == "" {
		opts.AcceptLanguage = defaultAcceptLanguage
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTML{
		opts:     opts,
		client:   client,
		breakers: newBreakerSet(opts.Breaker),
		logger:   logger.With().Str("component", "html_fetcher").Str("selector", opts.Selector).Logger(),
	}
}

// Fetch retrieves source and extracts its price.
func (h *HTML) Fetch(ctx context.Context, source string) Result {
	target, err := parseSource(source)
	if err != nil {
		return Transient(err)
	}
	host := strings.ToLower(target.Hostname())

	out, err := h.breakers.get(host).Execute(func() (interface{}, error) {
		res := h.fetchOnce(ctx, target.String())
		if res.Outcome == OutcomeTransient {
			return res, res.Err
		}
		return res, nil
	})

	res, ok := out.(Result)
	if err != nil {
		if ok && res.Outcome == OutcomeTransient {
			return res
		}
		// breaker refused the call
		return Transient(fmt.Errorf("host %s: %w", host, err))
	}
	if !ok {
		return Transient(errors.New("fetcher returned no result"))
	}

	h.logger.Debug().Str("source", source).Str("outcome", res.Outcome.String()).Msg("price page fetched")
	return res
}

func (h *HTML) fetchOnce(ctx context.Context, target string) Result {
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Transient(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)
	req.Header.Set("Accept-Language", h.opts.AcceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.client.Do(req)
	if err != nil {
		return Transient(fmt.Errorf("get %s: %w", target, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Transient(fmt.Errorf("get %s: unexpected status %d", target, resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Transient(fmt.Errorf("parse html: %w", err))
	}

	selection := doc.Find(h.opts.Selector).First()
	if selection.Length() == 0 {
		return NotFound()
	}

	price, err := ParsePrice(selection.Text())
	if err != nil {
		return Transient(err)
	}
	return Found(price)
}

// ParsePrice strips currency and grouping symbols from text and parses the
// remaining number. Only strictly positive prices are accepted.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, strings.TrimSpace(text))
	if cleaned == "" {
		return decimal.Decimal{}, fmt.Errorf("no digits in price text %q", text)
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse price %q: %w", text, err)
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("price %q is not positive", text)
	}
	return price, nil
}

func parseSource(source string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", source, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid source url %q: scheme must be http or https", source)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("invalid source url %q: missing host", source)
	}
	return u, nil
}

var _ PriceFetcher = (*HTML)(nil)

package webcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/54b3r/civic-go/internal/config"
	"github.com/54b3r/civic-go/internal/rag"
)

const (
	// DefaultAttempts is the number of tries per page.
	DefaultAttempts = 3

	// DefaultBackoff is the delay before the second attempt; it doubles
	// for each further attempt.
	DefaultBackoff = time.Second

	// DefaultTimeout bounds a single page request.
	DefaultTimeout = 10 * time.Second

	// MinContentLength is the shortest extracted text kept. Anything shorter
	// is treated as an error or redirect page.
	MinContentLength = 100

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 4 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// Source produces the documents for one cache key.
type Source interface {
	Scrape(ctx context.Context) ([]rag.Document, error)
}

// Scraper fetches a fixed list of pages below a base URL.
type Scraper struct {
	base     *url.URL
	targets  []config.WebTarget
	client   *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  time.Duration
	log      *slog.Logger
	metrics  *scraperMetrics

	// timer paces retries; nil uses a real time.Timer.
	timer backoff.Timer
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithHTTPClient replaces the default client (timeout DefaultTimeout).
func WithHTTPClient(c *http.Client) ScraperOption {
	return func(s *Scraper) { s.client = c }
}

// WithBackoff sets the base retry delay.
func WithBackoff(d time.Duration) ScraperOption {
	return func(s *Scraper) { s.backoff = d }
}

// WithAttempts sets the number of tries per page (minimum 1).
func WithAttempts(n int) ScraperOption {
	return func(s *Scraper) {
		if n < 1 {
			n = 1
		}
		s.attempts = n
	}
}

// WithRateLimit limits page requests to rps per second. Zero disables it.
func WithRateLimit(rps float64) ScraperOption {
	return func(s *Scraper) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithScraperRegisterer registers the scraper metrics on reg.
func WithScraperRegisterer(reg prometheus.Registerer) ScraperOption {
	return func(s *Scraper) { s.metrics = newScraperMetrics(reg) }
}

// WithScraperLogger sets the logger.
func WithScraperLogger(log *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		if log != nil {
			s.log = log
		}
	}
}

// NewScraper returns a Scraper for the targets below baseURL.
func NewScraper(baseURL string, targets []config.WebTarget, opts ...ScraperOption) (*Scraper, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("webcache: invalid base url %q", baseURL)
	}
	if len(targets) == 0 {
		return nil, errors.New("webcache: no targets configured")
	}
	s := &Scraper{
		base:     base,
		targets:  targets,
		client:   &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(2), 1),
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newScraperMetrics(prometheus.NewRegistry())
	}
	s.log = s.log.With(slog.String("component", "webcache"))
	return s, nil
}

// Scrape fetches every target in order. Pages that fail after all retries
// or whose text is shorter than MinContentLength are skipped. It returns
// an error only when no page produced a document.
func (s *Scraper) Scrape(ctx context.Context) ([]rag.Document, error) {
	var (
		docs    []rag.Document
		lastErr error
	)
	for _, t := range s.targets {
		pageURL := s.resolve(t.Path)
		doc, err := s.scrapeTarget(ctx, pageURL, t)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			s.metrics.pageFailures.Inc()
			s.log.Warn("webcache: page skipped", slog.String("url", pageURL), slog.String("error", err.Error()))
			continue
		}
		docs = append(docs, doc)
		s.log.Debug("webcache: page scraped", slog.String("url", pageURL), slog.Int("chars", len(doc.Content)))
	}
	if len(docs) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no pages fetched")
		}
		return nil, fmt.Errorf("webcache: scrape %s: %w", s.base.Host, lastErr)
	}
	s.log.Info("webcache: scrape complete", slog.Int("documents", len(docs)), slog.Int("targets", len(s.targets)))
	return docs, nil
}

func (s *Scraper) resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return s.base.String()
	}
	return s.base.ResolveReference(ref).String()
}

func (s *Scraper) scrapeTarget(ctx context.Context, pageURL string, t config.WebTarget) (rag.Document, error) {
	body, err := s.FetchPage(ctx, pageURL)
	if err != nil {
		return rag.Document{}, err
	}
	base, _ := url.Parse(pageURL)
	p, err := parsePage(strings.NewReader(body), base, t.Category)
	if err != nil {
		return rag.Document{}, fmt.Errorf("parse: %w", err)
	}
	if n := utf8.RuneCountInString(p.Text); n < MinContentLength {
		return rag.Document{}, fmt.Errorf("content too short (%d chars)", n)
	}

	extra := map[string]string{
		"url":        pageURL,
		"category":   t.Category,
		"fetched_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, vals := range map[string][]string{
		"links":  p.Links,
		"phones": p.Phones,
		"emails": p.Emails,
		"items":  p.Items,
	} {
		if len(vals) > 0 {
			extra[k] = strings.Join(vals, "\n")
		}
	}
	return rag.Document{
		Content: p.Text,
		Metadata: rag.Metadata{
			Title:    t.Title,
			Domain:   rag.DomainGeneral,
			Source:   s.base.Host,
			DataType: rag.DataTypeWeb,
			Extra:    extra,
		},
	}, nil
}

// FetchPage GETs pageURL, retrying failed attempts with exponential
// backoff. Non-2xx responses count as failures.
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (string, error) {
	var (
		body    string
		attempt int
	)
	op := func() error {
		attempt++
		b, err := s.get(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		body = b
		return nil
	}
	notify := func(err error, next time.Duration) {
		s.log.Warn("webcache: fetch attempt failed",
			slog.String("url", pageURL),
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", next),
			slog.String("error", err.Error()),
		)
	}
	if err := backoff.RetryNotifyWithTimer(op, s.retryPolicy(ctx), notify, s.timer); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("fetch %s after %d attempts: %w", pageURL, attempt, err)
	}
	return body, nil
}

// retryPolicy waits s.backoff before the second attempt and doubles the
// delay for each further one, up to s.attempts tries in total.
func (s *Scraper) retryPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.backoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = math.MaxInt64
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.attempts-1)), ctx)
}

func (s *Scraper) get(ctx context.Context, pageURL string) (string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("status %s", strconv.Itoa(resp.StatusCode))
	}
	return string(body), nil
}

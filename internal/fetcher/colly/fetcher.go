// Package collyfetcher implements lookup.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	defaultTimeout  = 30 * time.Second
)

// Config controls collector behavior.
type Config struct {
	Endpoint string
	// UserAgent is sent on every request; the service rejects obvious bots.
	UserAgent string
	// FormNamespace wraps each form key as namespace[key]. Empty sends bare keys.
	FormNamespace string
	Timeout       time.Duration
	// MaxConns caps connections to the endpoint host. Usually the dispatch ceiling.
	MaxConns int
}

// Fetcher posts lookup forms through a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid lookup endpoint %q", lookup.ErrConfiguration, cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	c := colly.NewCollector(colly.Async(false))
	// Two voters can share an identical form body; every row is looked up.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport(cfg.MaxConns))
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}, nil
}

// Fetch submits the lookup form for record and returns the response body.
// Transport failures and statuses Colly treats as errors wrap lookup.ErrNetwork.
func (f *Fetcher) Fetch(ctx context.Context, record lookup.Record) (string, error) {
	var (
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector(ctx, &body, &fetchErr)
	if err := f.runCollector(ctx, collector, f.formData(record), &fetchErr); err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *Fetcher) buildCollector(ctx context.Context, body *[]byte, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	f.configureCollectorHooks(collector, body, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Content-Type", formContentType)
		if f.cfg.UserAgent != "" {
			r.Headers.Set("User-Agent", f.cfg.UserAgent)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	form map[string]string,
	fetchErr *error,
) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Post(f.cfg.Endpoint, form)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: colly post canceled: %w", lookup.ErrNetwork, ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("%w: colly response failed: %w", lookup.ErrNetwork, *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("%w: colly post failed: %w", lookup.ErrNetwork, err)
		}
		return nil
	}
}

func (f *Fetcher) formData(record lookup.Record) map[string]string {
	values := record.FormValues()
	if f.cfg.FormNamespace == "" {
		return values
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		out[fmt.Sprintf("%s[%s]", f.cfg.FormNamespace, k)] = v
	}
	return out
}

func newHTTPTransport(maxConns int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
	}
}

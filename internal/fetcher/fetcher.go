// Package fetcher implements the single-GET pipeline.Fetcher using gocolly.
package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/sciencewire/article-harvester/internal/pipeline"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs one bounded-time GET per call. It never follows
// links; crawling is out of scope for the harvest pipeline.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher with a pooled transport shared by all clones.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes one GET and classifies the outcome. All failures are
// returned as Attempt values; the error field carries the detail.
func (f *Fetcher) Fetch(ctx context.Context, link string) pipeline.Attempt {
	collector := f.baseCollector.Clone()
	start := time.Now()

	var (
		statusCode int
		body       []byte
		respErr    error
	)
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		respErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(link)
	}()

	select {
	case <-ctx.Done():
		return pipeline.Attempt{
			Duration: time.Since(start),
			Err:      fmt.Errorf("fetch canceled: %w", ctx.Err()),
			Class:    pipeline.ClassTransient,
		}
	case visitErr := <-done:
		// Colly returns transport errors from Visit as well, after the
		// OnError hook has fired. Only a failure with no response and no
		// request error means the URL never made it to the wire.
		if visitErr != nil && respErr == nil && statusCode == 0 {
			return pipeline.Attempt{
				Duration: time.Since(start),
				Err:      fmt.Errorf("visit %s: %w", link, visitErr),
				Class:    pipeline.ClassPermanent,
			}
		}
	}

	attempt := pipeline.Attempt{
		StatusCode: statusCode,
		Duration:   time.Since(start),
	}
	switch {
	case respErr != nil && statusCode == 0:
		// The request never produced a response: DNS, connect, TLS or
		// timeout trouble. All of it is worth a retry.
		attempt.Err = respErr
		attempt.Class = pipeline.ClassTransient
	case statusCode >= 200 && statusCode < 300:
		attempt.Body = body
		attempt.Class = pipeline.ClassOK
	default:
		attempt.Err = fmt.Errorf("http status %d", statusCode)
		attempt.Class = ClassifyStatus(statusCode)
	}
	return attempt
}

// ClassifyStatus maps an HTTP status code to an attempt class: 2xx is
// ok, 429 and 5xx are transient, remaining 4xx are permanent. Anything
// else stays retryable.
func ClassifyStatus(code int) pipeline.Class {
	switch {
	case code >= 200 && code < 300:
		return pipeline.ClassOK
	case code == http.StatusTooManyRequests:
		return pipeline.ClassTransient
	case code >= 500:
		return pipeline.ClassTransient
	case code >= 400:
		return pipeline.ClassPermanent
	default:
		return pipeline.ClassTransient
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Package fetcher provides the HTTP and headless-browser capabilities the
// extraction pipeline is built on.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/andybalholm/brotli"

	"articlescout/internal/config"
	"articlescout/internal/types"
)

// Client fetches article pages over plain HTTP. It follows redirects up
// to the configured bound, caps response bodies, and transparently
// decompresses gzip, deflate and brotli payloads.
type Client struct {
	client      *http.Client
	maxBodySize int64
	userAgent   string
	logger      *slog.Logger
}

// Page is a fetched document plus the URL it ended up at after redirects.
type Page struct {
	Body     []byte
	FinalURL string
	Status   int
}

// NewClient creates an HTTP client from configuration.
func NewClient(cfg *config.FetcherConfig, logger *slog.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decompression handled below, including brotli
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("max redirects (%d) reached", maxRedirects)
			}
			return nil
		},
	}

	return &Client{
		client:      client,
		maxBodySize: cfg.MaxBodySize,
		userAgent:   cfg.UserAgent,
		logger:      logger.With("component", "http_client"),
	}
}

// Get fetches a URL and returns the decompressed body and final URL.
// Retries once on transient network errors.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	page, err := c.get(ctx, rawURL)
	if err == nil {
		return page, nil
	}

	var fe *types.FetchError
	if errors.As(err, &fe) && fe.Retryable {
		c.logger.Debug("retrying fetch", "url", rawURL, "error", err)
		return c.get(ctx, rawURL)
	}
	return nil, err
}

func (c *Client) get(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: isRetryableError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", resp.StatusCode, body),
			Retryable:  resp.StatusCode >= 500,
		}
	}

	var reader io.Reader = resp.Body
	if c.maxBodySize > 0 {
		reader = io.LimitReader(reader, c.maxBodySize)
	}

	reader, err = decompressReader(resp, reader)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err, Retryable: true}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	c.logger.Debug("fetch complete",
		"url", rawURL,
		"final_url", finalURL,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", time.Since(start),
	)

	return &Page{Body: body, FinalURL: finalURL, Status: resp.StatusCode}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}

// isRetryableError checks if a network error warrants a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if errors.Is(opErr.Err, syscall.ECONNRESET) || errors.Is(opErr.Err, syscall.ECONNREFUSED) {
			return true
		}
	}
	return false
}

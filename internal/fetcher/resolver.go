package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// resolverBodyCap bounds how much of a resolved page is read. Only the
// final URL matters, so a few KB is plenty.
const resolverBodyCap = 8 * 1024

// Resolver follows HTTP redirects to find the canonical address of a
// candidate URL. Resolution is best-effort: any failure returns the
// input unchanged.
type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

// NewResolver creates a redirect resolver with its own short-lived client.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("max redirects reached")
				}
				return nil
			},
		},
		logger: logger.With("component", "url_resolver"),
	}
}

// Resolve issues a GET (not HEAD — some sites mishandle HEAD) and returns
// the final URL after redirects. On any error the original URL is
// returned; resolution never becomes a hard dependency.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return rawURL
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; articlescout/1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("resolve failed, keeping original", "url", rawURL, "error", err)
		return rawURL
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, resolverBodyCap))

	if resp.Request == nil || resp.Request.URL == nil {
		return rawURL
	}

	final := resp.Request.URL.String()
	if final == rawURL {
		return rawURL
	}
	if !strings.HasPrefix(final, "http://") && !strings.HasPrefix(final, "https://") {
		return rawURL
	}

	r.logger.Debug("resolved redirect", "from", rawURL, "to", final)
	return final
}

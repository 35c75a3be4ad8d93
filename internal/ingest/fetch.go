package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"ansifier-server/internal/apperr"
)

// DefaultFetchTimeout bounds the full transfer, probe and download alike.
const DefaultFetchTimeout = 10 * time.Second

// Fetcher performs bounded remote retrievals: a HEAD probe for status and
// declared size, then a GET capped by the size limiter and a timeout. It
// never writes to disk; materialization is the pipeline's job.
type Fetcher struct {
	client  *http.Client
	limiter SizeLimiter
}

func NewFetcher(limiter SizeLimiter, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Fetcher{
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// Fetch retrieves the validated URL. The declared Content-Length is checked
// before the GET is issued so an oversized remote file is never transferred.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	probe, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "build probe request")
	}
	head, err := f.client.Do(probe)
	if err != nil {
		return nil, f.transportError(err, "probe image url")
	}
	io.Copy(io.Discard, head.Body)
	head.Body.Close()

	if head.StatusCode < 200 || head.StatusCode > 299 {
		return nil, apperr.New(apperr.KindUpstream, "image url returned code %d", head.StatusCode)
	}

	if err := f.limiter.CheckDeclared(head.ContentLength); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, err, "build fetch request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.transportError(err, "download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.New(apperr.KindUpstream, "image url returned code %d", resp.StatusCode)
	}

	// one byte past the ceiling is enough to prove the limit was broken
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.limiter.Max+1))
	if err != nil {
		return nil, f.transportError(err, "read image body")
	}
	if err := f.limiter.CheckActual(int64(len(body))); err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) transportError(err error, stage string) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return apperr.Wrap(apperr.KindUpstream, err, "%s: timed out after %s", stage, f.client.Timeout)
	}
	return apperr.Wrap(apperr.KindUpstream, err, "%s", stage)
}

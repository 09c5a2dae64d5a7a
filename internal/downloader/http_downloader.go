package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/mediagrab/internal/config"
	"github.com/iconidentify/mediagrab/internal/domain"
)

// ErrStalled is returned by a stream that received no data for the
// configured read timeout.
var ErrStalled = errors.New("stream stalled")

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests (Probe) with overall timeout
	client *http.Client
	// streamClient is used for streaming transfers without overall timeout
	streamClient *http.Client
	userAgent    string
	cfg          config.StreamConfig
	retry        RetryConfig
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP-based media downloader.
func NewHTTPDownloader(cfg config.StreamConfig, userAgent string, logger *slog.Logger) *HTTPDownloader {
	if logger == nil {
		logger = slog.Default()
	}

	// Transport for streaming - no overall timeout, but header timeout
	streamTransport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	retry := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry = RetryConfig{
			MaxAttempts:   cfg.MaxRetries,
			InitialDelay:  cfg.RetryDelay,
			MaxDelay:      cfg.MaxRetryDelay,
			BackoffFactor: 2.0,
		}
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		userAgent: userAgent,
		cfg:       cfg,
		retry:     retry,
		logger:    logger.With("component", "downloader"),
	}
}

// Open fetches url with retry logic and returns a stall-detecting reader.
func (d *HTTPDownloader) Open(ctx context.Context, rawURL string) (*Stream, error) {
	s, err := RetryWithCheck(ctx, d.retry, func() (*Stream, error) {
		return d.openOnce(ctx, rawURL)
	}, isRetryableError)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return s, nil
}

func (d *HTTPDownloader) openOnce(ctx context.Context, rawURL string) (*Stream, error) {
	// The stall watchdog cancels streamCtx, which unblocks a pending body read.
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	d.setHeaders(req)
	req.Header.Set("Accept", "audio/*,video/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("send request: %w", err)
	}

	if err := statusError(resp.StatusCode); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = n
			}
		}
	}

	return &Stream{
		Body:        newProgressReader(resp.Body, size, d.cfg.ReadTimeout, cancel, d.logger, rawURL),
		Size:        size,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Copy forwards the stream into dst until it ends or ctx is cancelled.
// It closes the stream.
func (d *HTTPDownloader) Copy(ctx context.Context, dst io.Writer, s *Stream) (int64, error) {
	defer s.Body.Close()

	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := s.Body.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, fmt.Errorf("write: %w", werr)
			}
			if f, ok := dst.(http.Flusher); ok {
				f.Flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			return written, fmt.Errorf("read: %w", rerr)
		}
	}
}

// Probe checks URL accessibility without downloading full content.
func (d *HTTPDownloader) Probe(ctx context.Context, rawURL string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	d.setHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return &ProbeResult{
			Accessible: false,
			Error:      err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	result := &ProbeResult{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Accessible:    resp.StatusCode >= 200 && resp.StatusCode < 300,
	}

	if !result.Accessible {
		result.Error = fmt.Sprintf("status code %d", resp.StatusCode)
	}

	return result, nil
}

// SelectBestURL returns the first accessible URL of urls, which should be
// ordered by preference.
func (d *HTTPDownloader) SelectBestURL(ctx context.Context, urls []string) (string, error) {
	for _, u := range urls {
		probe, err := d.Probe(ctx, u)
		if err != nil {
			continue
		}
		if probe.Accessible {
			return u, nil
		}
	}
	return "", domain.ErrNoMedia
}

func (d *HTTPDownloader) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", d.userAgent)
	if ref := origin(req.URL); ref != "" {
		req.Header.Set("Referer", ref)
	}
}

func origin(u *url.URL) string {
	if u == nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrUnauthorized, code)
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code < 200 || code > 299:
		return fmt.Errorf("%w: %d", domain.ErrUpstreamStatus, code)
	}
	return nil
}

func isRetryableError(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	// expired or signed-away URLs will not come back
	if errors.Is(err, domain.ErrUnauthorized) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// progressReader wraps an io.ReadCloser to track transfer progress
// and abort stalls (no data for readTimeout).
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	cancel      context.CancelFunc
	watchdog    *time.Timer
	stalled     atomic.Bool
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, cancel context.CancelFunc, logger *slog.Logger, rawURL string) *progressReader {
	p := &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		cancel:      cancel,
		lastLog:     time.Now(),
		logger:      logger,
		url:         rawURL,
	}
	if readTimeout > 0 {
		p.watchdog = time.AfterFunc(readTimeout, func() {
			p.stalled.Store(true)
			cancel()
		})
	}
	return p
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	if p.stalled.Load() {
		return n, fmt.Errorf("%w: no data received for %v", ErrStalled, p.readTimeout)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		if p.watchdog != nil {
			p.watchdog.Reset(p.readTimeout)
		}
		p.downloaded += int64(n)

		if now := time.Now(); now.Sub(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = now
		}
	}
	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.watchdog != nil {
		p.watchdog.Stop()
	}

	if p.downloaded > 0 {
		p.logProgress()
	}
	p.mu.Unlock()

	err := p.reader.Close()
	p.cancel()
	return err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Debug("stream progress",
			"url", p.url,
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Debug("stream progress",
			"url", p.url,
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}

var _ Downloader = (*HTTPDownloader)(nil)

package downloader

import (
	"context"
	"io"
)

// Downloader opens and forwards remote media.
type Downloader interface {
	// Open starts a transfer of url.
	Open(ctx context.Context, url string) (*Stream, error)

	// Copy forwards s into dst and closes it.
	Copy(ctx context.Context, dst io.Writer, s *Stream) (int64, error)

	// Probe checks URL accessibility without downloading the content.
	Probe(ctx context.Context, url string) (*ProbeResult, error)

	// SelectBestURL returns the first accessible URL of urls.
	SelectBestURL(ctx context.Context, urls []string) (string, error)
}

// Stream is an open media transfer. The caller closes Body.
type Stream struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// ProbeResult contains information about a media URL.
type ProbeResult struct {
	ContentType   string
	ContentLength int64
	Accessible    bool
	Error         string
}

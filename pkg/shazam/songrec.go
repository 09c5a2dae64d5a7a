package shazam

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
	"github.com/iconidentify/mediagrab/internal/toolexec"
)

// Recorded audio is raw PCM in this layout.
const (
	sampleRate    = 16000
	channels      = 1
	bitsPerSample = 16
)

// Songrec recognizes audio with the songrec binary, which fingerprints a
// file and queries Shazam's recognition endpoint.
type Songrec struct {
	runner toolexec.Runner
	path   string
	tmpDir string
	logger *slog.Logger
}

// NewSongrec creates a new songrec recognizer. path defaults to "songrec"
// and temporary files go to os.TempDir().
func NewSongrec(runner toolexec.Runner, path string, logger *slog.Logger) *Songrec {
	if path == "" {
		path = "songrec"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Songrec{runner: runner, path: path, tmpDir: os.TempDir(), logger: logger.With("provider", "songrec")}
}

func (p *Songrec) Name() string { return "songrec" }

func (p *Songrec) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	if len(req.Payload) == 0 {
		return nil, domain.NewInputError(req.Capability, EmptyAudioMessage)
	}

	file := filepath.Join(p.tmpDir, "recognize-"+uuid.NewString()+".wav")
	if err := writeWAV(file, req.Payload); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	defer os.Remove(file)

	p.logger.Debug("recognizing audio", "bytes", len(req.Payload))
	out, err := p.runner.Run(ctx, p.path, []string{"audio-file-to-recognized-song", file}, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Matches []struct {
			ID string `json:"id"`
		} `json:"matches"`
		Track *webTrack `json:"track"`
	}
	if err := httpclient.DecodeJSON(out, &resp); err != nil {
		return nil, fmt.Errorf("parse recognition: %w", err)
	}
	if resp.Track == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoMedia, NotRecognizedMessage)
	}
	t, ok := resp.Track.toTrack()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoMedia, NotRecognizedMessage)
	}
	return trackResult(t), nil
}

// writeWAV stores s16le mono PCM behind a canonical 44 byte RIFF header so
// the decoder can read it.
func writeWAV(name string, pcm []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	blockAlign := channels * bitsPerSample / 8
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + len(pcm)),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(channels),
		uint32(sampleRate),
		uint32(sampleRate * blockAlign),
		uint16(blockAlign),
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		uint32(len(pcm)),
	}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			f.Close()
			return err
		}
	}
	if _, err := f.Write(pcm); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

var _ resolver.Provider = (*Songrec)(nil)

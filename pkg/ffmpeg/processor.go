package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/iconidentify/mediagrab/internal/domain"
)

const waitDelay = 2 * time.Second

// outputFormat describes how ffmpeg writes one streamable format.
type outputFormat struct {
	codec       string
	muxer       string
	contentType string
	audioOnly   bool
}

// Only muxers that can write to a pipe are listed; mp4 needs fragmenting.
var formats = map[string]outputFormat{
	"mp3": {codec: "libmp3lame", muxer: "mp3", contentType: "audio/mpeg", audioOnly: true},
	"aac": {codec: "aac", muxer: "adts", contentType: "audio/aac", audioOnly: true},
	"ogg": {codec: "libvorbis", muxer: "ogg", contentType: "audio/ogg", audioOnly: true},
	"wav": {codec: "pcm_s16le", muxer: "wav", contentType: "audio/wav", audioOnly: true},
	"mp4": {codec: "copy", muxer: "mp4", contentType: "video/mp4"},
}

// Transcoder converts media streams with ffmpeg, reading the source on
// stdin and writing the result to stdout.
type Transcoder struct {
	ffmpegPath string
	bitrate    string
}

// NewTranscoder creates a transcoder. path defaults to "ffmpeg" in PATH.
func NewTranscoder(path string) *Transcoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &Transcoder{ffmpegPath: path, bitrate: "192k"}
}

// Supported reports whether format can be streamed.
func Supported(format string) bool {
	_, ok := formats[strings.ToLower(format)]
	return ok
}

// ContentType returns the MIME type of format, or
// application/octet-stream when it is unknown.
func ContentType(format string) string {
	if f, ok := formats[strings.ToLower(format)]; ok {
		return f.contentType
	}
	return "application/octet-stream"
}

// Args returns the ffmpeg arguments used to transcode to format.
func (t *Transcoder) Args(format string) ([]string, error) {
	f, ok := formats[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported stream format %q", domain.ErrInvalidInput, format)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0"}
	if f.audioOnly {
		args = append(args, "-vn", "-acodec", f.codec)
		if f.codec != "pcm_s16le" {
			args = append(args, "-b:a", t.bitrate)
		}
	} else {
		args = append(args, "-c", f.codec, "-movflags", "frag_keyframe+empty_moov")
	}
	return append(args, "-f", f.muxer, "pipe:1"), nil
}

// Transcode streams src through ffmpeg into dst. Cancelling ctx kills the
// process.
func (t *Transcoder) Transcode(ctx context.Context, src io.Reader, dst io.Writer, format string) error {
	args, err := t.Args(format)
	if err != nil {
		return err
	}
	path, err := exec.LookPath(t.ffmpegPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrToolMissing, t.ffmpegPath, err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.WaitDelay = waitDelay
	cmd.Stdin = src
	cmd.Stdout = dst
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %v: %s", err, lastLine(msg))
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Version returns the ffmpeg version string.
func (t *Transcoder) Version(ctx context.Context) (string, error) {
	output, err := exec.CommandContext(ctx, t.ffmpegPath, "-version").Output()
	if err != nil {
		return "", err
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

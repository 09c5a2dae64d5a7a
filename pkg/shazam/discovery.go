package shazam

import (
	"context"
	"fmt"
	"net/url"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/httpclient"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// Discovery looks a track up by its numeric key.
type Discovery struct {
	api webAPI
}

// NewDiscovery creates a new discovery track provider.
func NewDiscovery(client *httpclient.Client, baseURL string) *Discovery {
	return &Discovery{api: newWebAPI(client, baseURL)}
}

func (p *Discovery) Name() string { return "shazam-discovery" }

func (p *Discovery) Invoke(ctx context.Context, req resolver.Request) (*domain.Result, error) {
	var track webTrack
	if err := p.api.get(ctx, "/discovery/v5/en/US/web/-/track/"+url.PathEscape(req.Input), nil, &track); err != nil {
		return nil, fmt.Errorf("track %s: %w", req.Input, err)
	}
	t, ok := track.toTrack()
	if !ok {
		return nil, fmt.Errorf("%w: track %s not found", domain.ErrNoMedia, req.Input)
	}
	if t.ID == "" {
		t.ID = req.Input
	}
	return trackResult(t), nil
}

var _ resolver.Provider = (*Discovery)(nil)

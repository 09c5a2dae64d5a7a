package domain

// Capability names a logical resolution operation. The set is fixed at
// startup.
type Capability string

const (
	CapYouTubeConvert      Capability = "youtube.convert"
	CapYouTubeSearch       Capability = "youtube.search"
	CapTikTokFetch         Capability = "tiktok.fetch"
	CapInstagramFetch      Capability = "instagram.fetch"
	CapFacebookFetch       Capability = "facebook.fetch"
	CapSpotifySearch       Capability = "spotify.search"
	CapSpotifyResolveTrack Capability = "spotify.resolveTrack"
	CapSpotifyDownload     Capability = "spotify.download"
	CapShazamSearch        Capability = "shazam.search"
	CapShazamTrack         Capability = "shazam.track"
	CapShazamRecognize     Capability = "shazam.recognize"
	CapAIChat              Capability = "ai.chat"
	CapAIImage             Capability = "ai.image"
)

var allCapabilities = []Capability{
	CapYouTubeConvert,
	CapYouTubeSearch,
	CapTikTokFetch,
	CapInstagramFetch,
	CapFacebookFetch,
	CapSpotifySearch,
	CapSpotifyResolveTrack,
	CapSpotifyDownload,
	CapShazamSearch,
	CapShazamTrack,
	CapShazamRecognize,
	CapAIChat,
	CapAIImage,
}

// Capabilities returns every known capability in a stable order.
func Capabilities() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	for _, k := range allCapabilities {
		if k == c {
			return true
		}
	}
	return false
}

// Cacheable reports whether successful results for c may be reused for an
// identical request. Generated and recognition output is never reused.
func (c Capability) Cacheable() bool {
	switch c {
	case CapAIChat, CapAIImage, CapShazamRecognize:
		return false
	}
	return true
}

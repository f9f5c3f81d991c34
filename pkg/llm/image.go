package llm

import (
	"encoding/base64"
	"strings"
)

// ImageData is an image part translated for provider consumption.
type ImageData struct {
	// URL is set for plain http(s) references, passed through unchanged.
	URL string

	// Base64 and MediaType are set for data-URI images decoded to the raw
	// base64 form providers expect.
	Base64    string
	MediaType string
}

// ParseImageURL classifies an image reference. Plain http(s) URLs pass
// through; data URIs are split into media type and base64 payload. Anything
// unparseable returns ok=false so callers can drop the part silently rather
// than failing the whole request.
func ParseImageURL(raw string) (ImageData, bool) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return ImageData{URL: raw}, true
	}

	if !strings.HasPrefix(raw, "data:") {
		return ImageData{}, false
	}

	// data:<media-type>;base64,<payload>
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return ImageData{}, false
	}
	mediaType, found := strings.CutSuffix(meta, ";base64")
	if !found {
		return ImageData{}, false
	}
	if mediaType == "" {
		mediaType = "image/png"
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return ImageData{}, false
	}
	return ImageData{Base64: payload, MediaType: mediaType}, true
}

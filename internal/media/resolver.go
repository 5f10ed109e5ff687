package media

import (
	"strings"

	"github.com/threadline/backend/internal/models"
)

// Variant names a delivery size preset
type Variant string

const (
	VariantThumb Variant = "thumb" // avatars
	VariantFeed  Variant = "feed"  // feed cards
	VariantFull  Variant = "full"  // thread view
)

var imagePresets = map[Variant]string{
	VariantThumb: "w_200,c_fill,q_auto,f_auto",
	VariantFeed:  "w_900,c_limit,q_auto,f_auto",
	VariantFull:  "w_1600,c_limit,q_auto,f_auto",
}

// Resolver builds delivery URLs from stored public IDs
type Resolver struct {
	baseURL string
}

// NewResolver creates a Resolver rooted at baseURL
func NewResolver(baseURL string) *Resolver {
	return &Resolver{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// URL returns the delivery URL for an asset. Images get the variant's
// transformation; videos are delivered untransformed. Without a public ID
// the stored URL is returned as-is.
func (r *Resolver) URL(t models.MediaType, publicID, storedURL string, v Variant) string {
	if publicID == "" {
		return storedURL
	}
	if t == models.MediaVideo {
		return r.baseURL + "/video/upload/" + publicID
	}
	preset, ok := imagePresets[v]
	if !ok {
		preset = imagePresets[VariantFeed]
	}
	return r.baseURL + "/image/upload/" + preset + "/" + publicID
}

package art

import (
	"fmt"
	"net/url"

	"github.com/i474232898/forecast-summary/internal/weather"
)

const (
	DefaultPrefix = "default_"
	DefaultBucket = "weather-girls-2.firebasestorage.app"

	storageHost = "https://firebasestorage.googleapis.com/v0/b"
	folder      = "backgrounds"
)

// Resolver names background art assets and builds their public download URLs
// in cloud storage. Prefix selects an art set.
type Resolver struct {
	Prefix string
	Bucket string
}

func NewResolver(prefix, bucket string) Resolver {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	return Resolver{Prefix: prefix, Bucket: bucket}
}

// Name returns the prefixed asset name for an art base name.
func (r Resolver) Name(base string) string {
	return r.Prefix + base
}

// URL returns the download URL of the asset for an art base name.
func (r Resolver) URL(base string) string {
	object := url.PathEscape(folder + "/" + r.Name(base) + ".png")
	return fmt.Sprintf("%s/%s/o/%s?alt=media", storageHost, url.PathEscape(r.Bucket), object)
}

// Asset describes the background for one condition.
type Asset struct {
	Base   string             `json:"base"`
	Name   string             `json:"name"`
	URL    string             `json:"url"`
	Effect weather.EffectKind `json:"effect"`
}

// ForIcon resolves the background asset for an upstream icon token.
func (r Resolver) ForIcon(iconCode, main string) Asset {
	base := weather.BackgroundArt(iconCode, main)
	effect, ok := weather.EffectForArt(base)
	if !ok {
		effect = weather.EffectNone
	}
	return Asset{
		Base:   base,
		Name:   r.Name(base),
		URL:    r.URL(base),
		Effect: effect,
	}
}

package hls

import "context"

// StreamResolver lists the quality variants behind a manifest URL. Site
// specific page scraping lives outside this module; anything that can
// produce a manifest URL can feed the engine.
type StreamResolver struct {
	Client Doer
}

// Variants fetches the manifest and returns its variant list sorted by
// bandwidth descending. A media playlist (no variants) yields the single
// default variant.
func (r *StreamResolver) Variants(ctx context.Context, manifestURL string) ([]Variant, error) {
	content, err := FetchManifest(ctx, r.Client, manifestURL)
	if err != nil {
		return nil, err
	}
	return ParseMasterPlaylist(content, manifestURL)
}

package hls

import (
	"bufio"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/averol/gohls/internal/domain"
)

// Segment is one entry of a media playlist. Index is 0-based and dense;
// its order is the authoritative merge order and is never rearranged.
type Segment struct {
	Index int
	URI   string
	URL   string
}

// Variant is one quality option of a master playlist.
type Variant struct {
	Quality   string `json:"quality"`
	Label     string `json:"label"`
	URL       string `json:"url"`
	Bandwidth int    `json:"bandwidth"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// ParseMediaPlaylist turns media playlist text into the ordered segment
// list, resolving every URI against the manifest URL.
func ParseMediaPlaylist(content, manifestURL string) ([]Segment, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, &domain.ManifestError{URL: manifestURL, Reason: "invalid manifest URL: " + err.Error()}
	}

	var segments []Segment
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		resolved, err := resolveReference(base, line)
		if err != nil {
			return nil, &domain.ManifestError{URL: manifestURL, Reason: fmt.Sprintf("bad segment URI %q: %v", line, err)}
		}
		segments = append(segments, Segment{Index: len(segments), URI: line, URL: resolved})
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.ManifestError{URL: manifestURL, Reason: err.Error()}
	}
	if len(segments) == 0 {
		return nil, &domain.ManifestError{URL: manifestURL, Reason: "no segments in playlist"}
	}
	return segments, nil
}

// IsMasterPlaylist reports whether the playlist lists variants rather than
// segments.
func IsMasterPlaylist(content string) bool {
	return strings.Contains(content, "#EXT-X-STREAM-INF")
}

// ParseMasterPlaylist extracts the variant list from a master playlist,
// sorted by bandwidth descending. Ties keep manifest order. A playlist
// without EXT-X-STREAM-INF entries yields a single default variant pointing
// back at the manifest itself.
func ParseMasterPlaylist(content, manifestURL string) ([]Variant, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return nil, &domain.ManifestError{URL: manifestURL, Reason: "invalid manifest URL: " + err.Error()}
	}

	var variants []Variant
	var pending *Variant
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			v := parseStreamInf(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			pending = &v
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		default:
			if pending == nil {
				continue
			}
			resolved, err := resolveReference(base, line)
			if err != nil {
				return nil, &domain.ManifestError{URL: manifestURL, Reason: fmt.Sprintf("bad variant URI %q: %v", line, err)}
			}
			pending.URL = resolved
			pending.Quality, pending.Label = variantLabels(*pending)
			variants = append(variants, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.ManifestError{URL: manifestURL, Reason: err.Error()}
	}

	if len(variants) == 0 {
		return []Variant{{Quality: "default", Label: "Default quality", URL: manifestURL}}, nil
	}
	sort.SliceStable(variants, func(i, j int) bool {
		return variants[i].Bandwidth > variants[j].Bandwidth
	})
	return variants, nil
}

// resolveReference applies the segment URL rules: absolute URLs pass
// through, a leading slash resolves against the manifest host only, and
// anything else resolves against the manifest's directory.
func resolveReference(base *url.URL, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	if strings.HasPrefix(ref, "/") {
		return base.Scheme + "://" + base.Host + ref, nil
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(rel).String(), nil
}

// parseStreamInf reads the BANDWIDTH and RESOLUTION attributes of an
// EXT-X-STREAM-INF line. Attribute values may be quoted.
func parseStreamInf(attrs string) Variant {
	var v Variant
	for _, attr := range splitAttributes(attrs) {
		key, value, ok := strings.Cut(attr, "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "BANDWIDTH":
			v.Bandwidth, _ = strconv.Atoi(value)
		case "RESOLUTION":
			if w, h, ok := strings.Cut(strings.ToLower(value), "x"); ok {
				v.Width, _ = strconv.Atoi(w)
				v.Height, _ = strconv.Atoi(h)
			}
		}
	}
	return v
}

// splitAttributes splits a comma-separated attribute list without breaking
// quoted values like CODECS="avc1.4d401f,mp4a.40.2".
func splitAttributes(s string) []string {
	var parts []string
	var sb strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			sb.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, sb.String())
			sb.Reset()
		default:
			sb.WriteRune(r)
		}
	}
	if sb.Len() > 0 {
		parts = append(parts, sb.String())
	}
	return parts
}

func variantLabels(v Variant) (quality, label string) {
	mbps := float64(v.Bandwidth) / 1_000_000
	if v.Height > 0 {
		quality = fmt.Sprintf("%dp", v.Height)
		label = fmt.Sprintf("%dx%d (%s) - %.1f Mbps", v.Width, v.Height, quality, mbps)
		return quality, label
	}
	quality = fmt.Sprintf("%.1fM", mbps)
	return quality, quality
}

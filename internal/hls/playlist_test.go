package hls

import (
	"errors"
	"strings"
	"testing"

	"github.com/averol/gohls/internal/domain"
)

func TestParseMediaPlaylist(t *testing.T) {
	manifest := "https://cdn.example.com/streams/show/index.m3u8"

	content := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6

#EXTINF:6.0,
seg0.ts
#EXTINF:6.0,
/other/seg1.ts
#EXTINF:4.2,
https://mirror.example.net/seg2.ts
#EXT-X-ENDLIST
`

	segments, err := ParseMediaPlaylist(content, manifest)
	if err != nil {
		t.Fatalf("ParseMediaPlaylist() error = %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(segments))
	}

	wantURLs := []string{
		"https://cdn.example.com/streams/show/seg0.ts",
		"https://cdn.example.com/other/seg1.ts",
		"https://mirror.example.net/seg2.ts",
	}
	for i, seg := range segments {
		if seg.Index != i {
			t.Errorf("segment %d: Index = %d, want %d", i, seg.Index, i)
		}
		if seg.URL != wantURLs[i] {
			t.Errorf("segment %d: URL = %q, want %q", i, seg.URL, wantURLs[i])
		}
	}
}

func TestParseMediaPlaylistNoSegments(t *testing.T) {
	content := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-ENDLIST\n"

	_, err := ParseMediaPlaylist(content, "https://cdn.example.com/index.m3u8")
	if err == nil {
		t.Fatal("expected error for playlist without segments")
	}
	var merr *domain.ManifestError
	if !errors.As(err, &merr) {
		t.Fatalf("expected ManifestError, got %T", err)
	}
}

func TestResolveReference(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		ref      string
		want     string
	}{
		{
			name:     "absolute http passthrough",
			manifest: "https://cdn.example.com/a/b/index.m3u8",
			ref:      "http://other.example.org/seg.ts",
			want:     "http://other.example.org/seg.ts",
		},
		{
			name:     "absolute https passthrough",
			manifest: "https://cdn.example.com/a/b/index.m3u8",
			ref:      "https://other.example.org/seg.ts",
			want:     "https://other.example.org/seg.ts",
		},
		{
			name:     "root relative uses manifest host",
			manifest: "https://cdn.example.com/a/b/index.m3u8",
			ref:      "/media/seg.ts",
			want:     "https://cdn.example.com/media/seg.ts",
		},
		{
			name:     "relative resolves against manifest directory",
			manifest: "https://cdn.example.com/a/b/index.m3u8",
			ref:      "seg.ts",
			want:     "https://cdn.example.com/a/b/seg.ts",
		},
		{
			name:     "relative with subdirectory",
			manifest: "https://cdn.example.com/a/b/index.m3u8",
			ref:      "chunks/seg.ts?token=abc",
			want:     "https://cdn.example.com/a/b/chunks/seg.ts?token=abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "#EXTM3U\n#EXTINF:6.0,\n" + tt.ref + "\n"
			segments, err := ParseMediaPlaylist(content, tt.manifest)
			if err != nil {
				t.Fatalf("ParseMediaPlaylist() error = %v", err)
			}
			if segments[0].URL != tt.want {
				t.Errorf("URL = %q, want %q", segments[0].URL, tt.want)
			}
		})
	}
}

func TestIsMasterPlaylist(t *testing.T) {
	master := "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nlow.m3u8\n"
	media := "#EXTM3U\n#EXTINF:6.0,\nseg0.ts\n"

	if !IsMasterPlaylist(master) {
		t.Error("master playlist not detected")
	}
	if IsMasterPlaylist(media) {
		t.Error("media playlist misdetected as master")
	}
}

func TestParseMasterPlaylist(t *testing.T) {
	manifest := "https://cdn.example.com/show/master.m3u8"
	content := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2"
720.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=4500000,RESOLUTION=1920x1080
1080.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=800000
audio.m3u8
`

	variants, err := ParseMasterPlaylist(content, manifest)
	if err != nil {
		t.Fatalf("ParseMasterPlaylist() error = %v", err)
	}
	if len(variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(variants))
	}

	// Bandwidth descending.
	if variants[0].Quality != "1080p" || variants[1].Quality != "720p" {
		t.Errorf("sort order wrong: got %q, %q", variants[0].Quality, variants[1].Quality)
	}
	if variants[0].URL != "https://cdn.example.com/show/1080.m3u8" {
		t.Errorf("variant URL = %q", variants[0].URL)
	}
	if variants[1].Label != "1280x720 (720p) - 1.2 Mbps" {
		t.Errorf("variant label = %q", variants[1].Label)
	}
	// No resolution falls back to a bandwidth label.
	if !strings.Contains(variants[2].Quality, "M") {
		t.Errorf("bandwidth-only quality = %q", variants[2].Quality)
	}
}

func TestParseMasterPlaylistNoVariants(t *testing.T) {
	manifest := "https://cdn.example.com/show/index.m3u8"
	variants, err := ParseMasterPlaylist("#EXTM3U\n", manifest)
	if err != nil {
		t.Fatalf("ParseMasterPlaylist() error = %v", err)
	}
	if len(variants) != 1 || variants[0].URL != manifest {
		t.Fatalf("expected single default variant pointing at manifest, got %+v", variants)
	}
}

func TestSplitAttributesQuoted(t *testing.T) {
	parts := splitAttributes(`BANDWIDTH=1200000,CODECS="avc1.4d401f,mp4a.40.2",RESOLUTION=1280x720`)
	if len(parts) != 3 {
		t.Fatalf("expected 3 attributes, got %d: %v", len(parts), parts)
	}
	if parts[1] != `CODECS="avc1.4d401f,mp4a.40.2"` {
		t.Errorf("quoted attribute split incorrectly: %q", parts[1])
	}
}

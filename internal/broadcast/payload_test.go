package broadcast

import "testing"

func TestPayloadExcerptAndKind(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name    string
		payload Payload
		excerpt string
		kind    string
	}{
		{"text", TextPayload("hello"), "hello", "text"},
		{"photo", MediaPayload(1, 2, "photo", "cap"), "cap", "photo"},
		{"video no caption", MediaPayload(1, 2, "video", ""), "", "video"},
		{"unknown media", MediaPayload(1, 2, "", "x"), "x", "media"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.payload.Excerpt(); got != tc.excerpt {
				t.Errorf("Excerpt() = %q, want %q", got, tc.excerpt)
			}
			if got := tc.payload.ContentKind(); got != tc.kind {
				t.Errorf("ContentKind() = %q, want %q", got, tc.kind)
			}
		})
	}
}

package textutil

import (
	"strings"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "site.jpg", want: "site.jpg"},
		{name: "unix path", input: "/tmp/photos/site.jpg", want: "site.jpg"},
		{name: "windows path", input: `C:\Users\field\IMG 001.JPG`, want: "IMG 001.JPG"},
		{name: "traversal", input: "../../etc/passwd", want: "passwd"},
		{name: "unsafe characters", input: `a:b*c?"d<e>f|g.png`, want: "a-b-cdefg.png"},
		{name: "hidden file", input: ".profile", want: "profile"},
		{name: "control characters", input: "x\x00y\n.jpg", want: "xy.jpg"},
		{name: "empty", input: "   ", want: ""},
		{name: "only dots", input: "..", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFileName(tt.input); got != tt.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFileNameKeepsExtensionWhenShortening(t *testing.T) {
	got := SanitizeFileName(strings.Repeat("a", 300) + ".jpeg")
	if len([]rune(got)) != maxFileNameRunes {
		t.Fatalf("expected %d runes, got %d", maxFileNameRunes, len([]rune(got)))
	}
	if !strings.HasSuffix(got, ".jpeg") {
		t.Fatalf("extension lost: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	got := Truncate(strings.Repeat("x", 50), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("non-positive limit should not truncate, got %q", got)
	}
}

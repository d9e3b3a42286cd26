package hlpath

import (
	"strings"
	"testing"
)

func TestNormalizeDir(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"Games", "/Games/"},
		{"/Games/", "/Games/"},
		{"Games/Apps", "/Games/Apps/"},
		{"//Games///Apps//", "/Games/Apps/"},
		{"\\Games\\Apps", "/Games/Apps/"},
		{"Games\\\\Apps\\", "/Games/Apps/"},
		{"/Music/MP3s (1990s)/", "/Music/MP3s (1990s)/"},
	}

	for _, tt := range tests {
		if got := NormalizeDir(tt.in); got != tt.want {
			t.Errorf("NormalizeDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDirIdempotent(t *testing.T) {
	inputs := []string{"", "/", "a//b", "\\x\\y\\", "/already/normal/", "trailing"}
	for _, in := range inputs {
		once := NormalizeDir(in)
		twice := NormalizeDir(once)
		if once != twice {
			t.Errorf("NormalizeDir not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizeDirShape(t *testing.T) {
	inputs := []string{"", "a", "a/b/c", "//x//", "\\win\\style", "deep/very/deep//path"}
	for _, in := range inputs {
		got := NormalizeDir(in)
		if !strings.HasPrefix(got, "/") || !strings.HasSuffix(got, "/") {
			t.Errorf("NormalizeDir(%q) = %q: missing leading or trailing separator", in, got)
		}
		if strings.Contains(got, "//") && got != "/" {
			t.Errorf("NormalizeDir(%q) = %q: contains consecutive separators", in, got)
		}
	}
}

func TestBreadcrumbs(t *testing.T) {
	tests := []struct {
		path string
		want []Crumb
	}{
		{"/", []Crumb{{"/", "/"}}},
		{"/Games/", []Crumb{{"/", "/"}, {"Games", "/Games/"}}},
		{"/Games/Apps/", []Crumb{{"/", "/"}, {"Games", "/Games/"}, {"Apps", "/Games/Apps/"}}},
	}

	for _, tt := range tests {
		got := Breadcrumbs(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("Breadcrumbs(%q): got %d crumbs, want %d: %v", tt.path, len(got), len(tt.want), got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Breadcrumbs(%q)[%d] = %+v, want %+v", tt.path, i, got[i], tt.want[i])
			}
		}
	}
}

func TestBreadcrumbPathsNormalized(t *testing.T) {
	for _, crumb := range Breadcrumbs("/a/b/c/") {
		if NormalizeDir(crumb.Path) != crumb.Path {
			t.Errorf("crumb path %q is not normalized", crumb.Path)
		}
	}
}

func TestParentDir(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"/Games/", "/"},
		{"/Games/Apps/", "/Games/"},
		{"Games/Apps", "/Games/"},
	}

	for _, tt := range tests {
		if got := ParentDir(tt.in); got != tt.want {
			t.Errorf("ParentDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

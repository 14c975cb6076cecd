package pipeline

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func floatPtr(v float64) *float64 { return &v }

func TestFormatMergeTime(t *testing.T) {
	tests := []struct {
		name  string
		hours *float64
		want  string
	}{
		{"no data", nil, "N/A"},
		{"minutes", floatPtr(0.75), "45 min"},
		{"hours", floatPtr(3.2), "3.2 hrs"},
		{"just under a day", floatPtr(23.9), "23.9 hrs"},
		{"days", floatPtr(33.6), "1.4 days"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatMergeTime(tt.hours); got != tt.want {
				t.Errorf("FormatMergeTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatRejection(t *testing.T) {
	tests := []struct {
		name string
		rate *float64
		want string
	}{
		{"no data", nil, "N/A"},
		{"quarter", floatPtr(0.25), "25%"},
		{"zero", floatPtr(0), "0%"},
		{"all", floatPtr(1), "100%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRejection(tt.rate); got != tt.want {
				t.Errorf("FormatRejection = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short comment", 100); got != "short comment" {
		t.Errorf("unexpected truncation: %q", got)
	}
	long := ""
	for i := 0; i < 30; i++ {
		long += "abcde"
	}
	got := truncate(long, 100)
	if len(got) != 100 {
		t.Errorf("expected length 100, got %d", len(got))
	}
	if got[97:] != "..." {
		t.Errorf("expected ellipsis suffix, got %q", got[97:])
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	// 3-byte runes that straddle every cut position near the limit.
	long := strings.Repeat("日本語", 40)
	for n := 10; n <= 16; n++ {
		got := truncate(long, n)
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%d) produced invalid UTF-8: %q", n, got)
		}
		if len(got) > n {
			t.Errorf("truncate(%d) returned %d bytes", n, len(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("truncate(%d) missing ellipsis: %q", n, got)
		}
	}
}

func TestSplitRepo(t *testing.T) {
	owner, repo, err := splitRepo("octo/course")
	if err != nil || owner != "octo" || repo != "course" {
		t.Errorf("unexpected result: %q %q %v", owner, repo, err)
	}
	if _, _, err := splitRepo("nodelimiter"); err == nil {
		t.Error("expected error for missing slash")
	}
	if _, _, err := splitRepo("/repo"); err == nil {
		t.Error("expected error for empty owner")
	}
}

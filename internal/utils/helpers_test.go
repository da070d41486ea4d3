package utils

import "testing"

func TestNormalizeMoney(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"250", "250.00", true},
		{"$1,250.5", "1250.50", true},
		{250.0, "250.00", true},
		{"(12.00)", "-12.00", true},
		{"", "", false},
		{"N/A", "", false},
		{nil, "", false},
		{true, "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeMoney(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeMoney(%v) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2024-03-05":    "2024-03-05",
		"03/05/2024":    "2024-03-05",
		"March 5, 2024": "2024-03-05",
		" 5 Mar 2024 ":  "2024-03-05",
		"next tuesday":  "next tuesday",
		"":              "",
	}
	for in, want := range tests {
		if got := NormalizeDate(in); got != want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo", 2); got != "hé" {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("Truncate with n=0 = %q", got)
	}
}

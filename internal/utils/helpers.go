package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StrPtr returns nil for the empty string.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	// strip time to midnight UTC to match DATE semantics
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// NormalizeDate rewrites recognizable dates as YYYY-MM-DD. Anything else is returned trimmed.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := ParseYMD(s); err == nil {
		return t.Format("2006-01-02")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

var reMoneyNoise = regexp.MustCompile(`[^\d.\-]`)

// NormalizeMoney turns "$1,250.5" or 1250.5 into "1250.50". ok is false when no number is present.
func NormalizeMoney(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case float64:
		return fmt.Sprintf("%.2f", t), true
	case int:
		return fmt.Sprintf("%d.00", t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
			return "", false
		}
		neg := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
		s = reMoneyNoise.ReplaceAllString(s, "")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", false
		}
		if neg && f > 0 {
			f = -f
		}
		return fmt.Sprintf("%.2f", f), true
	default:
		return "", false
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

package models

import "strings"

// ReportCategories is the fixed list offered by the report form.
var ReportCategories = []string{
	DefaultCategory,
	"Road",
	"Streetlight",
	"Garbage",
	"Drainage",
	"Water",
	"Public Safety",
}

// NormalizeCategory matches s against ReportCategories case-insensitively
// and returns the canonical spelling.
func NormalizeCategory(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range ReportCategories {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	return "", false
}

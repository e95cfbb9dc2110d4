package utils

import (
	"strings"

	"github.com/araddon/dateparse"
)

// NormalizeDate formats a release date as YYYY-MM-DD, keeping the date part
// of anything dateparse does not understand.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return strings.Split(s, "T")[0]
	}
	return t.Format("2006-01-02")
}

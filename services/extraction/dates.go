package extraction

import (
	"strings"
	"time"
)

// IsoDateLayout is the only closing date format the record accepts
const IsoDateLayout = "2006-01-02"

// Day-first layouts are tried before month-first ones; tenders in the
// region write dates day first.
var dateLayouts = []string{
	IsoDateLayout,
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// NormalizeDate converts a date in a common layout to YYYY-MM-DD
func NormalizeDate(value string) (string, bool) {
	value = strings.TrimSpace(NormalizeDigits(value))
	if value == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(IsoDateLayout), true
		}
	}
	return "", false
}

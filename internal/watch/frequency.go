// Package watch archives copies of a save file whenever its in-game date
// crosses into a new frequency bucket.
package watch

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/rakaly/cli/internal/document"
)

// Frequency is the snapshot interval in game time.
type Frequency uint8

// Frequencies.
const (
	Daily Frequency = iota + 1
	Monthly
	Quarterly
	Yearly
	Decade
)

// ParseFrequency accepts daily, monthly, quarterly, yearly and decade, and
// their singular forms.
func ParseFrequency(s string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "day":
		return Daily, nil
	case "monthly", "month":
		return Monthly, nil
	case "quarterly", "quarter":
		return Quarterly, nil
	case "yearly", "year":
		return Yearly, nil
	case "decade":
		return Decade, nil
	}
	return 0, eris.Errorf("watch: unknown frequency %q", s)
}

func (f Frequency) String() string {
	switch f {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case Yearly:
		return "yearly"
	case Decade:
		return "decade"
	}
	return "unknown"
}

// Bucket maps d to an ordinal that increases with time. Dates in the same
// period share a bucket. The hour is ignored.
func (f Frequency) Bucket(d document.Date) int64 {
	y, m, _ := d.YMD()
	year, month := int64(y), int64(m)
	switch f {
	case Daily:
		return d.Days
	case Monthly:
		return year*12 + month - 1
	case Quarterly:
		return year*4 + (month-1)/3
	case Decade:
		q := year / 10
		if year%10 < 0 {
			q--
		}
		return q
	}
	return year
}

// ShouldSnapshot reports whether a save dated d warrants a snapshot given
// the date of the latest one. Only a strictly later bucket qualifies, so a
// loaded older save never overwrites history.
func (f Frequency) ShouldSnapshot(d document.Date, last *document.Date) bool {
	if last == nil {
		return true
	}
	return f.Bucket(d) > f.Bucket(*last)
}

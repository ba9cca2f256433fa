package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// EpochYear is the year of day zero. Calendars have 365 days and no leap
// years.
const EpochYear = -5000

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Date is a signed day offset from 1 January EpochYear plus an hour.
type Date struct {
	Days int64
	Hour uint8
}

func floorDiv(a, b int64) (int64, int64) {
	q, r := a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

// DateFromRaw decodes the binary representation: hours since the epoch.
func DateFromRaw(raw int64) Date {
	days, hour := floorDiv(raw, 24)
	return Date{Days: days, Hour: uint8(hour)}
}

// NewDate builds a date from calendar fields.
func NewDate(year, month, day int) (Date, error) {
	if month < 1 || month > 12 {
		return Date{}, eris.Errorf("document: invalid month %d", month)
	}
	if day < 1 || day > monthDays[month-1] {
		return Date{}, eris.Errorf("document: invalid day %d for month %d", day, month)
	}
	days := int64(year-EpochYear) * 365
	for m := 0; m < month-1; m++ {
		days += int64(monthDays[m])
	}
	return Date{Days: days + int64(day-1)}, nil
}

// MustDate is NewDate for constant inputs.
func MustDate(year, month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// WithHour returns d at hour h.
func (d Date) WithHour(h int) Date {
	d.Hour = uint8(h)
	return d
}

// Raw encodes the date as hours since the epoch.
func (d Date) Raw() int64 {
	return d.Days*24 + int64(d.Hour)
}

// YMD returns the calendar fields.
func (d Date) YMD() (year, month, day int) {
	y, doy := floorDiv(d.Days, 365)
	month = 1
	rem := int(doy)
	for _, n := range monthDays {
		if rem < n {
			break
		}
		rem -= n
		month++
	}
	return int(y) + EpochYear, month, rem + 1
}

// Year returns the calendar year.
func (d Date) Year() int {
	y, _, _ := d.YMD()
	return y
}

// Compare orders dates, returning -1, 0 or 1.
func (d Date) Compare(o Date) int {
	a, b := d.Raw(), o.Raw()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// String formats the date as Y.M.D.
func (d Date) String() string {
	y, m, dd := d.YMD()
	return fmt.Sprintf("%d.%d.%d", y, m, dd)
}

// StringWithHour formats the date as Y.M.D.H.
func (d Date) StringWithHour() string {
	return fmt.Sprintf("%s.%d", d.String(), d.Hour)
}

// ISO formats the date as Y-MM-DD.
func (d Date) ISO() string {
	y, m, dd := d.YMD()
	return fmt.Sprintf("%d-%02d-%02d", y, m, dd)
}

// ParseDate reads Y.M.D or Y.M.D.H. The year may be negative.
func ParseDate(s string) (Date, error) {
	neg := strings.HasPrefix(s, "-")
	parts := strings.Split(strings.TrimPrefix(s, "-"), ".")
	if len(parts) != 3 && len(parts) != 4 {
		return Date{}, eris.Errorf("document: invalid date %q", s)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || p == "" {
			return Date{}, eris.Errorf("document: invalid date %q", s)
		}
		nums[i] = n
	}
	if neg {
		nums[0] = -nums[0]
	}
	d, err := NewDate(nums[0], nums[1], nums[2])
	if err != nil {
		return Date{}, err
	}
	if len(nums) == 4 {
		if nums[3] > 23 {
			return Date{}, eris.Errorf("document: invalid hour in %q", s)
		}
		d = d.WithHour(nums[3])
	}
	return d, nil
}

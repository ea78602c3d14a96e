// Package datetime converts between broken-down dates and the second
// counter used by the RTC emulation. The epoch is 2000-01-01 00:00:00
// and the supported range covers years 2000 to 2099.
package datetime

// Date is a broken-down date/time. Year is relative to 2000 (0..99).
// Fields are signed so that out-of-range values can be wrapped by Fix.
type Date struct {
	Year  int
	Month int // 1..12
	Day   int // 1..31
	Hour  int
	Min   int
	Sec   int
}

var dayCount = [2][12]uint8{
	{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
	{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31},
}

// Years divisible by 4 are leap years for the whole 2000-2099 range.
func isLeap(year int) bool {
	return year&3 == 0
}

// ToTimestamp converts a date to a second counter since 2000-01-01.
func ToTimestamp(d Date) uint32 {
	ndays := uint32(d.Day - 1)
	y := 0
	for y+4 <= d.Year {
		ndays += 366 + 3*365
		y += 4
	}
	for y < d.Year {
		if isLeap(y) {
			ndays += 366
		} else {
			ndays += 365
		}
		y++
	}
	leap := 0
	if isLeap(d.Year) {
		leap = 1
	}
	for m := 0; m < d.Month-1; m++ {
		ndays += uint32(dayCount[leap][m])
	}
	return uint32(d.Sec) + 60*uint32(d.Min) + 3600*uint32(d.Hour) + 24*3600*ndays
}

// FromTimestamp converts a second counter since 2000-01-01 to a date.
func FromTimestamp(ts uint32) Date {
	var out Date
	out.Sec = int(ts % 60)
	ts /= 60
	out.Min = int(ts % 60)
	ts /= 60
	out.Hour = int(ts % 24)
	ts /= 24

	for {
		dcnt := uint32(365)
		if isLeap(out.Year) {
			dcnt = 366
		}
		if ts < dcnt {
			break
		}
		out.Year++
		ts -= dcnt
	}

	leap := 0
	if isLeap(out.Year) {
		leap = 1
	}
	for {
		mcnt := uint32(dayCount[leap][out.Month])
		out.Month++
		if ts < mcnt {
			break
		}
		ts -= mcnt
	}

	out.Day = int(ts) + 1
	return out
}

// Fix wraps any out-of-range field into its valid range. Used by the
// RTC setup UI when the user scrolls a field past its limits.
func Fix(d Date) Date {
	if d.Year > 99 {
		d.Year = 0
	} else if d.Year < 0 {
		d.Year = 99
	}

	if d.Hour > 23 {
		d.Hour = 0
	} else if d.Hour < 0 {
		d.Hour = 23
	}

	if d.Min > 59 {
		d.Min = 0
	} else if d.Min < 0 {
		d.Min = 59
	}

	if d.Sec > 59 {
		d.Sec = 0
	} else if d.Sec < 0 {
		d.Sec = 59
	}

	if d.Month <= 0 {
		d.Month = 12
	} else if d.Month > 12 {
		d.Month = 1
	}

	leap := 0
	if isLeap(d.Year) {
		leap = 1
	}
	totd := int(dayCount[leap][d.Month-1])

	if d.Day > totd {
		d.Day = 1
	} else if d.Day <= 0 {
		d.Day = totd
	}
	return d
}

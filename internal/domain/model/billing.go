package model

import "time"

// BillableMinutes converts a billable window into whole minutes, rounding up.
// Any chat that both started and ended is charged a minimum of one minute,
// so sub-minute sessions are never free.
func BillableMinutes(start, end time.Time) int {
	if !end.After(start) {
		return 1
	}
	secs := end.Sub(start).Seconds()
	minutes := int(secs / 60)
	if float64(minutes*60) < secs {
		minutes++
	}
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// ChargeFor is the price of a billable window at the given per-minute rate.
func ChargeFor(minutes int, ratePerMinute int64) int64 {
	if minutes <= 0 {
		return 0
	}
	return int64(minutes) * ratePerMinute
}

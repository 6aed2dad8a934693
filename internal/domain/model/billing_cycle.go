package model

import "time"

// cycleMonths maps each recurring cycle to its calendar length. Custom is
// absent on purpose: its period is configuration, not arithmetic.
var cycleMonths = map[BillingCycle]int{
	CycleMonthly:      1,
	CycleSemiannually: 6,
	CycleAnnually:     12,
	CycleBiennially:   24,
	CycleTriennially:  36,
}

// NextExpiration derives the expiration date for a recurring cycle anchored at
// start. It returns nil for one-time, custom and unknown cycles; callers must
// treat nil as "not subject to renewal scheduling". Custom cycles are resolved
// by NextExpirationCustom with a configured day count.
func NextExpiration(start time.Time, cycle BillingCycle) *time.Time {
	months, ok := cycleMonths[cycle]
	if !ok {
		return nil
	}
	exp := addMonthsClamped(start, months)
	return &exp
}

// NextExpirationCustom resolves a custom cycle from a configured period.
func NextExpirationCustom(start time.Time, periodDays int) *time.Time {
	if periodDays <= 0 {
		return nil
	}
	exp := start.AddDate(0, 0, periodDays)
	return &exp
}

// addMonthsClamped adds calendar months, clamping the day to the last day of
// the target month. time.AddDate normalizes instead (Jan 31 + 1mo = Mar 3),
// which is wrong for billing anchors: Jan 31 must renew on Feb 28/29.
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	ny, nm := normalizeMonth(y, int(m)+months)
	if last := daysIn(ny, nm); d > last {
		d = last
	}
	return time.Date(ny, time.Month(nm), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func normalizeMonth(year, month int) (int, int) {
	for month > 12 {
		month -= 12
		year++
	}
	for month < 1 {
		month += 12
		year--
	}
	return year, month
}

func daysIn(year, month int) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Expiration resolves a service's effective expiration: cycle math for
// recurring services, the explicit field for one-time ones, and the supplied
// period for custom cycles. Nil means the service never expires on its own.
func (s *Service) Expiration(customPeriodDays int) *time.Time {
	switch s.Cycle {
	case CycleOneTime:
		return s.ExplicitExpiration
	case CycleCustom:
		return NextExpirationCustom(s.CycleStart, customPeriodDays)
	default:
		return NextExpiration(s.CycleStart, s.Cycle)
	}
}

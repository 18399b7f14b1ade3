package stacks

import "time"

// Scope is the key family a cached stack belongs to.
type Scope string

const (
	ScopeDaily  Scope = "daily"
	ScopeWeekly Scope = "weekly"
)

// TTL floors keep entries written just before a period boundary from
// expiring immediately and thrashing the fast tier.
const (
	dailyTTLFloor  = 60 * time.Second
	weeklyTTLFloor = time.Hour
)

// periodKey returns the calendar bucket a request at time t falls into:
// the UTC day for daily scope, the UTC week-start Monday for weekly scope.
func (s Scope) periodKey(t time.Time) string {
	if s == ScopeWeekly {
		return weekKey(t)
	}
	return dayKey(t)
}

// ttl returns the remaining lifetime of a fast-tier entry written at time t,
// aligned to the next period boundary rather than a fixed duration.
func (s Scope) ttl(t time.Time) time.Duration {
	if s == ScopeWeekly {
		return ttlUntilNextMonday(t)
	}
	return ttlUntilMidnight(t)
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekKey(t time.Time) string {
	return weekStart(t).Format("2006-01-02")
}

// weekStart returns the Monday 00:00 UTC that begins t's week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	diff := 1 - int(t.Weekday())
	if t.Weekday() == time.Sunday {
		diff = -6
	}
	m := t.AddDate(0, 0, diff)
	return time.Date(m.Year(), m.Month(), m.Day(), 0, 0, 0, 0, time.UTC)
}

func ttlUntilMidnight(now time.Time) time.Duration {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	ttl := midnight.Sub(now)
	if ttl < dailyTTLFloor {
		return dailyTTLFloor
	}
	return ttl
}

func ttlUntilNextMonday(now time.Time) time.Duration {
	now = now.UTC()
	nextMonday := weekStart(now).AddDate(0, 0, 7)
	ttl := nextMonday.Sub(now)
	if ttl < weeklyTTLFloor {
		return weeklyTTLFloor
	}
	return ttl
}

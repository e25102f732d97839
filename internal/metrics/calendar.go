package metrics

import "time"

// Calendar interprets pair timestamps. The pair collection treats times as
// opaque integers; only the hour histogram needs a calendar.
type Calendar interface {
	// Hour returns the hour of day, 0..23, for ts.
	Hour(ts int64) int
}

// EpochMillis reads timestamps as Unix milliseconds in Location
// (UTC when nil).
type EpochMillis struct {
	Location *time.Location
}

// Hour implements Calendar.
func (c EpochMillis) Hour(ts int64) int {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ts).In(loc).Hour()
}

// NewEpochMillis resolves an IANA zone name such as "America/Chicago".
// An empty name means UTC.
func NewEpochMillis(zone string) (EpochMillis, error) {
	if zone == "" {
		return EpochMillis{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return EpochMillis{}, err
	}
	return EpochMillis{Location: loc}, nil
}

var _ Calendar = EpochMillis{}

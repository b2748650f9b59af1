package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Prague")
	if err != nil {
		panic(err)
	}
}

// force the timezone the club lives in, because the servers running
// the syncs may end up anywhere which would cause disturbances when
// manipulating dates based on <time.Time>.Year()/Month()/Day()/Hour()/...
func Now() time.Time {
	return time.Now().In(Location)
}

// Today returns the club-local calendar date with the clock zeroed out.
func Today() time.Time {
	now := Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, Location)
}

// ParseDate reads a yyyy-mm-dd string as a club-local calendar date.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", value, Location)
}

package discord

import (
	"strconv"
	"time"
)

// the platform counts snowflake timestamps from 2015-01-01 UTC
const snowflakeEpochMillis = 1420070400000

// TimeSnowflake builds a synthetic message id for the given time,
// usable as the `after` parameter when walking channel history.
func TimeSnowflake(t time.Time) string {
	millis := t.UnixMilli() - snowflakeEpochMillis
	if millis < 0 {
		millis = 0
	}
	return strconv.FormatInt(millis<<22, 10)
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MessageOlderThan reports whether the message was created on or
// before the given calendar day. A nil message counts as older (there
// is nothing newer to look at).
func MessageOlderThan(msg *Message, date time.Time) bool {
	if msg == nil {
		return true
	}
	return !civilDate(msg.Timestamp).After(civilDate(date))
}

// MessageOverPeriodAgo reports whether at least `period` has passed
// between the message's calendar day and today. The period is expected
// to be a whole number of days.
func MessageOverPeriodAgo(msg *Message, period time.Duration, today time.Time) bool {
	return MessageOlderThan(msg, today.Add(-period))
}

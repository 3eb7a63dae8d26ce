// Package civil provides wall-clock date and time types. Values carry no
// time zone: a DateTime parsed from "2025-01-06T10:00:00+05:00" keeps the
// 10:00 reading and drops the offset. They encode to and from PostgreSQL
// timestamp, time and date columns through the pgtype scanner and valuer
// interfaces.
package civil

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	dateTimeLayout = "2006-01-02T15:04:05"
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
)

var dateTimeInputs = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	dateTimeLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// DateTime is a calendar date with a wall-clock time.
type DateTime struct {
	wall time.Time
}

// DateTimeOf reads the wall clock of t, ignoring its location.
func DateTimeOf(t time.Time) DateTime {
	return DateTime{wall: time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// NewDateTime builds a DateTime from its parts.
func NewDateTime(year int, month time.Month, day, hour, min, sec int) DateTime {
	return DateTime{wall: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// ParseDateTime accepts ISO-8601 with or without an offset. Any offset is
// discarded without converting the clock reading.
func ParseDateTime(s string) (DateTime, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeInputs {
		if t, err := time.Parse(layout, s); err == nil {
			return DateTimeOf(t), nil
		}
	}
	return DateTime{}, fmt.Errorf("civil: invalid datetime %q", s)
}

func (d DateTime) IsZero() bool { return d.wall.IsZero() }

// Time returns the wall clock as a UTC-located time.Time.
func (d DateTime) Time() time.Time { return d.wall }

func (d DateTime) Add(dur time.Duration) DateTime { return DateTime{wall: d.wall.Add(dur)} }

func (d DateTime) Sub(o DateTime) time.Duration { return d.wall.Sub(o.wall) }

func (d DateTime) Before(o DateTime) bool { return d.wall.Before(o.wall) }

func (d DateTime) After(o DateTime) bool { return d.wall.After(o.wall) }

func (d DateTime) Equal(o DateTime) bool { return d.wall.Equal(o.wall) }

// Weekday returns the ISO day index with Monday as 0 and Sunday as 6.
func (d DateTime) Weekday() int {
	return (int(d.wall.Weekday()) + 6) % 7
}

// TimeOfDay returns the clock reading within the day.
func (d DateTime) TimeOfDay() TimeOfDay {
	return TimeOfDay{micros: int64(d.wall.Hour())*3600e6 +
		int64(d.wall.Minute())*60e6 +
		int64(d.wall.Second())*1e6 +
		int64(d.wall.Nanosecond()/1000)}
}

func (d DateTime) String() string {
	if d.wall.Nanosecond() != 0 {
		return d.wall.Format("2006-01-02T15:04:05.999999")
	}
	return d.wall.Format(dateTimeLayout)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = DateTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("civil: datetime must be a string: %w", err)
	}
	v, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d *DateTime) ScanTimestamp(v pgtype.Timestamp) error {
	if !v.Valid {
		*d = DateTime{}
		return nil
	}
	*d = DateTimeOf(v.Time)
	return nil
}

func (d DateTime) TimestampValue() (pgtype.Timestamp, error) {
	if d.IsZero() {
		return pgtype.Timestamp{}, nil
	}
	return pgtype.Timestamp{Time: d.wall, Valid: true}, nil
}

// TimeOfDay is a clock reading in microseconds since midnight.
type TimeOfDay struct {
	micros int64
}

const microsPerDay = 24 * 3600 * 1e6

func NewTimeOfDay(hour, min, sec int) TimeOfDay {
	return TimeOfDay{micros: int64(hour)*3600e6 + int64(min)*60e6 + int64(sec)*1e6}
}

// EndOfDay is 24:00:00, the only reading past 23:59:59. It is valid as the
// closing bound of a window that runs to midnight.
var EndOfDay = TimeOfDay{micros: microsPerDay}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS. "24:00" and "24:00:00" parse as
// EndOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" || s == "24:00:00" {
		return EndOfDay, nil
	}
	for _, layout := range []string{timeLayout, "15:04", "15:04:05.999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimeOfDay(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("civil: invalid time of day %q", s)
}

func (t TimeOfDay) Compare(o TimeOfDay) int {
	switch {
	case t.micros < o.micros:
		return -1
	case t.micros > o.micros:
		return 1
	default:
		return 0
	}
}

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.micros < o.micros }

func (t TimeOfDay) String() string {
	secs := t.micros / 1e6
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("civil: time of day must be a string: %w", err)
	}
	v, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *TimeOfDay) ScanTime(v pgtype.Time) error {
	if !v.Valid {
		*t = TimeOfDay{}
		return nil
	}
	if v.Microseconds < 0 || v.Microseconds > microsPerDay {
		return fmt.Errorf("civil: time of day out of range: %d", v.Microseconds)
	}
	t.micros = v.Microseconds
	return nil
}

func (t TimeOfDay) TimeValue() (pgtype.Time, error) {
	return pgtype.Time{Microseconds: t.micros, Valid: true}, nil
}

// Date is a calendar day.
type Date struct {
	day time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{day: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("civil: invalid date %q", s)
	}
	return Date{day: t}, nil
}

func (d Date) IsZero() bool { return d.day.IsZero() }

func (d Date) String() string { return d.day.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("civil: date must be a string: %w", err)
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d *Date) ScanDate(v pgtype.Date) error {
	if !v.Valid {
		*d = Date{}
		return nil
	}
	*d = NewDate(v.Time.Year(), v.Time.Month(), v.Time.Day())
	return nil
}

func (d Date) DateValue() (pgtype.Date, error) {
	if d.IsZero() {
		return pgtype.Date{}, nil
	}
	return pgtype.Date{Time: d.day, Valid: true}, nil
}

package daterange

import (
	"errors"
	"time"
)

var (
	ErrInvalidRange = errors.New("daterange: checkout must be after checkin")
)

// DateRange represents a half-open interval [checkIn, checkOut) of civil days.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts YYYY-MM-DD or RFC3339 input.
func ParseDay(raw string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return Day(t), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: Day(checkIn), CheckOut: Day(checkOut)}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// SingleNight covers exactly the night starting on day.
func SingleNight(day time.Time) DateRange {
	day = Day(day)
	return DateRange{CheckIn: day, CheckOut: day.AddDate(0, 0, 1)}
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

const secondsPerDay = 24 * 60 * 60

// Nights counts civil days between the bounds. Both are UTC midnights after
// Day, so the difference is always whole days.
func (dr DateRange) Nights() int {
	return int((Day(dr.CheckOut).Unix() - Day(dr.CheckIn).Unix()) / secondsPerDay)
}

// LastNight is the day of the final night, checkOut minus one day.
func (dr DateRange) LastNight() time.Time {
	return Day(dr.CheckOut).AddDate(0, 0, -1)
}

// EachNight lists the start day of every night in the range.
func (dr DateRange) EachNight() []time.Time {
	n := dr.Nights()
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	for day := Day(dr.CheckIn); day.Before(Day(dr.CheckOut)); day = day.AddDate(0, 0, 1) {
		out = append(out, day)
	}
	return out
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = Day(t)
	return (t.Equal(dr.CheckIn) || t.After(dr.CheckIn)) && t.Before(dr.CheckOut)
}

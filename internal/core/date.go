package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// DateLayout is the wire and form format of invoice dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without time of day.
type Date struct {
	time.Time
}

var ErrInvalidDate = errors.New("invalid date")

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// dateLayouts are tried in order. Layouts with a time of day keep only the day.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"02.01.2006",
}

// ParseDate accepts "2006-01-02", German "02.01.2006" and ISO timestamps with
// or without zone, keeping only the day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return Date{}, ErrInvalidDate
}

// String renders the wire format.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// German renders the day as dd.mm.yyyy.
func (d Date) German() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02.01.2006")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

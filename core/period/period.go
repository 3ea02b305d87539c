// Package period implements calendar month arithmetic used to build lag
// windows and to derive the months a forecast refers to.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPeriod is returned when a month falls outside [1,12].
var ErrInvalidPeriod = errors.New("invalid period")

// Period identifies a calendar month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// New returns a validated Period.
func New(year, month int) (Period, error) {
	p := Period{Year: year, Month: month}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate reports whether the month is in [1,12].
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	return nil
}

// index counts months from year 0, January being 0.
func (p Period) index() int { return p.Year*12 + p.Month - 1 }

func fromIndex(i int) Period {
	y := i / 12
	m := i % 12
	if m < 0 {
		m += 12
		y--
	}
	return Period{Year: y, Month: m + 1}
}

// Add moves n months forward. Negative n moves backwards.
func (p Period) Add(n int) Period { return fromIndex(p.index() + n) }

// Sub moves n months backwards.
func (p Period) Sub(n int) Period { return fromIndex(p.index() - n) }

// Lags returns the period itself followed by the n preceding months.
func (p Period) Lags(n int) []Period {
	out := make([]Period, n+1)
	for i := 0; i <= n; i++ {
		out[i] = p.Sub(i)
	}
	return out
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool { return p.index() < o.index() }

// String formats the period as YYYY-MM.
func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, p.Month) }

// Parse reads a YYYY-MM string.
func Parse(s string) (Period, error) {
	y, m, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return Period{}, fmt.Errorf("%w: year %q", ErrInvalidPeriod, y)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return Period{}, fmt.Errorf("%w: month %q", ErrInvalidPeriod, m)
	}
	return New(year, month)
}

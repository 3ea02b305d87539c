// Package features assembles the fixed-width lagged feature vector consumed by
// the forecasting models.
//
// The column layout is a contract with models trained outside this service:
//
//	month, building, Area,
//	Eusers, Eusers-1 .. Eusers-11,
//	exam, exam-1 .. exam-11,
//	semester, semester-1 .. semester-11,
//	Unit, Unit-1 .. Unit-11
//
// The spellings are the ones the models were trained with and are matched
// verbatim against artifact column lists.
package features

import (
	"fmt"
	"strconv"
)

// Lags is the number of preceding months carried for every signal.
const Lags = 11

// Signal identifies one of the tracked historical series.
type Signal int

const (
	SignalUsers Signal = iota
	SignalExam
	SignalSemester
	SignalUnit
	numSignals
)

// Signals lists the tracked series in column order.
var Signals = [numSignals]Signal{SignalUsers, SignalExam, SignalSemester, SignalUnit}

var signalNames = [numSignals]string{"Eusers", "exam", "semester", "Unit"}

func (s Signal) String() string {
	if s < 0 || s >= numSignals {
		return fmt.Sprintf("signal(%d)", int(s))
	}
	return signalNames[s]
}

// Column indexes a Vector.
type Column int

const (
	ColMonth Column = iota
	ColBuilding
	ColArea
	colSignals
)

// NumColumns is the width of a Vector.
const NumColumns = int(colSignals) + int(numSignals)*(Lags+1)

// Col returns the column holding signal s at the given lag (0 is the current month).
func Col(s Signal, lag int) Column {
	if lag < 0 || lag > Lags {
		panic(fmt.Sprintf("features: lag %d out of range", lag))
	}
	return colSignals + Column(int(s)*(Lags+1)+lag)
}

// Vector is one feature row.
type Vector [NumColumns]float64

// Get returns the value of signal s at the given lag.
func (v *Vector) Get(s Signal, lag int) float64 { return v[Col(s, lag)] }

// Set stores the value of signal s at the given lag.
func (v *Vector) Set(s Signal, lag int, val float64) { v[Col(s, lag)] = val }

// Slice returns a copy of the row as a slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumColumns)
	copy(out, v[:])
	return out
}

var columnNames = buildColumnNames()

func buildColumnNames() [NumColumns]string {
	var names [NumColumns]string
	names[ColMonth] = "month"
	names[ColBuilding] = "building"
	names[ColArea] = "Area"
	for _, s := range Signals {
		for lag := 0; lag <= Lags; lag++ {
			name := s.String()
			if lag > 0 {
				name = fmt.Sprintf("%s-%d", name, lag)
			}
			names[Col(s, lag)] = name
		}
	}
	return names
}

// String returns the column name.
func (c Column) String() string {
	if c < 0 || int(c) >= NumColumns {
		return fmt.Sprintf("column(%d)", int(c))
	}
	return columnNames[c]
}

// ColumnNames returns the names of all columns in order.
func ColumnNames() []string {
	out := make([]string, NumColumns)
	copy(out, columnNames[:])
	return out
}

// Named returns a view of v keyed by column name. The view is rendered only
// when a log line is actually written, so disabled debug logging costs no
// per-column work.
func (v *Vector) Named() NamedRow { return NamedRow{v: v} }

// NamedRow renders a Vector as an ordered JSON object of column to value.
type NamedRow struct {
	v *Vector
}

// MarshalJSON implements json.Marshaler.
func (r NamedRow) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, NumColumns*16)
	buf = append(buf, '{')
	for i, val := range r.v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, columnNames[i])
		buf = append(buf, ':')
		buf = strconv.AppendFloat(buf, val, 'g', -1, 64)
	}
	return append(buf, '}'), nil
}

func (r NamedRow) String() string {
	b, _ := r.MarshalJSON()
	return string(b)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

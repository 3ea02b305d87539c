// Package export writes prediction records as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/utilcast/core/model"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Header is the CSV header row. It matches the JSON field names.
var Header = []string{
	"building", "area", "prediction", "unit", "modelName",
	"month_current", "year_current", "month_predict", "year_predict",
}

// Write encodes recs in the given format.
func Write(w io.Writer, format string, recs []model.PredictionRecord) error {
	switch format {
	case FormatJSON, "":
		return WriteJSON(w, recs)
	case FormatCSV:
		return WriteCSV(w, recs)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

// WriteJSON writes recs to w as an indented JSON array.
func WriteJSON(w io.Writer, recs []model.PredictionRecord) error {
	if recs == nil {
		recs = []model.PredictionRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

// WriteCSV writes recs to w in CSV format with a header row.
func WriteCSV(w io.Writer, recs []model.PredictionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.Building,
			strconv.FormatFloat(r.Area, 'f', -1, 64),
			strconv.FormatFloat(r.Prediction, 'f', -1, 64),
			strconv.FormatFloat(r.Unit, 'f', -1, 64),
			r.ModelName,
			strconv.Itoa(r.MonthCurrent),
			strconv.Itoa(r.YearCurrent),
			strconv.Itoa(r.MonthPredict),
			strconv.Itoa(r.YearPredict),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

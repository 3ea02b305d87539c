package model

import (
	"time"

	"github.com/kilianp07/utilcast/core/period"
)

// PredictionRecord is the result of scoring one building with one model.
// Records are immutable once built.
type PredictionRecord struct {
	Building     string    `db:"building" json:"building"`
	Area         float64   `db:"area" json:"area"`
	Prediction   float64   `db:"prediction" json:"prediction"`
	Unit         float64   `db:"unit" json:"unit"`
	ModelName    string    `db:"model_name" json:"modelName"`
	MonthCurrent int       `db:"month_current" json:"month_current"`
	YearCurrent  int       `db:"year_current" json:"year_current"`
	MonthPredict int       `db:"month_predict" json:"month_predict"`
	YearPredict  int       `db:"year_predict" json:"year_predict"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}

// Current returns the period the request was made for.
func (r PredictionRecord) Current() period.Period {
	return period.Period{Year: r.YearCurrent, Month: r.MonthCurrent}
}

// Predicted returns the period the prediction refers to.
func (r PredictionRecord) Predicted() period.Period {
	return period.Period{Year: r.YearPredict, Month: r.MonthPredict}
}

// Request asks for forecasts of the given month using the selected models.
// ModelName is a single model, a comma separated list or "All".
type Request struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	ModelName string `json:"modelName"`
}

// Period returns the requested period without validation.
func (r Request) Period() period.Period {
	return period.Period{Year: r.Year, Month: r.Month}
}

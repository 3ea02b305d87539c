package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// PredictionStore stores forecast rows in the prediction table.
type PredictionStore struct {
	db  *DB
	now func() time.Time
}

// NewPredictionStore returns a store over db.
func NewPredictionStore(db *DB) *PredictionStore {
	return &PredictionStore{db: db, now: time.Now}
}

type predictionRow struct {
	ID           int64   `db:"id"`
	Building     string  `db:"building"`
	Area         float64 `db:"area"`
	Prediction   float64 `db:"prediction"`
	Unit         float64 `db:"unit"`
	ModelName    string  `db:"model_name"`
	MonthCurrent int     `db:"month_current"`
	YearCurrent  int     `db:"year_current"`
	MonthPredict int     `db:"month_predict"`
	YearPredict  int     `db:"year_predict"`
	CreatedAt    int64   `db:"created_at"`
}

func (r predictionRow) record() model.PredictionRecord {
	return model.PredictionRecord{
		Building:     r.Building,
		Area:         r.Area,
		Prediction:   r.Prediction,
		Unit:         r.Unit,
		ModelName:    r.ModelName,
		MonthCurrent: r.MonthCurrent,
		YearCurrent:  r.YearCurrent,
		MonthPredict: r.MonthPredict,
		YearPredict:  r.YearPredict,
		CreatedAt:    time.Unix(r.CreatedAt, 0).UTC(),
	}
}

const insertPrediction = `INSERT INTO prediction (
        building, area, prediction, unit, model_name,
        month_current, year_current, month_predict, year_predict, created_at
    ) VALUES (
        :building, :area, :prediction, :unit, :model_name,
        :month_current, :year_current, :month_predict, :year_predict, :created_at
    )`

// Save inserts all records in one transaction.
func (s *PredictionStore) Save(ctx context.Context, recs []model.PredictionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	created := s.now().UTC().Unix()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, insertPrediction)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range recs {
		row := predictionRow{
			Building:     r.Building,
			Area:         r.Area,
			Prediction:   r.Prediction,
			Unit:         r.Unit,
			ModelName:    r.ModelName,
			MonthCurrent: r.MonthCurrent,
			YearCurrent:  r.YearCurrent,
			MonthPredict: r.MonthPredict,
			YearPredict:  r.YearPredict,
			CreatedAt:    created,
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return fmt.Errorf("insert prediction %s/%s: %w", r.Building, r.ModelName, err)
		}
	}
	return tx.Commit()
}

// Lookup returns the rows requested for p, in insertion order.
func (s *PredictionStore) Lookup(ctx context.Context, p period.Period) ([]model.PredictionRecord, error) {
	var rows []predictionRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT
        id, building, area, prediction, unit, model_name,
        month_current, year_current, month_predict, year_predict, created_at
        FROM prediction WHERE year_current = ? AND month_current = ? ORDER BY id`),
		p.Year, p.Month)
	if err != nil {
		return nil, err
	}
	out := make([]model.PredictionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// LatestPeriod returns the most recent month predictions were stored for.
func (s *PredictionStore) LatestPeriod(ctx context.Context) (period.Period, bool, error) {
	var rows []struct {
		Year  int `db:"year_current"`
		Month int `db:"month_current"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT year_current, month_current FROM prediction
        ORDER BY year_current DESC, month_current DESC LIMIT 1`)
	if err != nil || len(rows) == 0 {
		return period.Period{}, false, err
	}
	return period.Period{Year: rows[0].Year, Month: rows[0].Month}, true, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// Reader serves historical readings to the feature assembler.
type Reader struct {
	db *DB
}

// NewReader returns a Reader over db.
func NewReader(db *DB) *Reader { return &Reader{db: db} }

func (r *Reader) BuildingMeta(ctx context.Context, id int64) (model.Building, bool, error) {
	var b model.Building
	err := r.db.GetContext(ctx, &b, r.db.Rebind(`SELECT id, code, name, area FROM building WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Building{}, false, nil
	}
	if err != nil {
		return model.Building{}, false, err
	}
	return b, true, nil
}

func (r *Reader) UnitAmount(ctx context.Context, buildingID int64, p period.Period) (int64, bool, error) {
	return first[int64](ctx, r.db, `SELECT amount FROM unit
        WHERE building_id = ? AND years = ? AND month = ? ORDER BY id LIMIT 1`,
		buildingID, p.Year, p.Month)
}

func (r *Reader) UserCount(ctx context.Context, p period.Period) (int64, bool, error) {
	return first[int64](ctx, r.db, `SELECT amount FROM number_of_users
        WHERE years = ? AND month = ? ORDER BY id LIMIT 1`, p.Year, p.Month)
}

func (r *Reader) ExamStatus(ctx context.Context, p period.Period) (bool, bool, error) {
	return first[bool](ctx, r.db, `SELECT status FROM exam_status
        WHERE years = ? AND month = ? ORDER BY id LIMIT 1`, p.Year, p.Month)
}

func (r *Reader) SemesterStatus(ctx context.Context, p period.Period) (bool, bool, error) {
	return first[bool](ctx, r.db, `SELECT status FROM semester_status
        WHERE years = ? AND month = ? ORDER BY id LIMIT 1`, p.Year, p.Month)
}

// BuildingsWithUnitData lists building ids with a unit reading in p, in the
// order their first reading was inserted.
func (r *Reader) BuildingsWithUnitData(ctx context.Context, p period.Period) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`SELECT building_id FROM unit
        WHERE years = ? AND month = ?
        GROUP BY building_id ORDER BY MIN(id)`), p.Year, p.Month)
	return ids, err
}

// LatestUnitPeriod returns the most recent month with a unit reading.
func (r *Reader) LatestUnitPeriod(ctx context.Context) (period.Period, bool, error) {
	var row struct {
		Year  int `db:"years"`
		Month int `db:"month"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT years, month FROM unit ORDER BY years DESC, month DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return period.Period{}, false, nil
	}
	if err != nil {
		return period.Period{}, false, err
	}
	return period.Period{Year: row.Year, Month: row.Month}, true, nil
}

func first[T any](ctx context.Context, db *DB, query string, args ...any) (T, bool, error) {
	var v T
	err := db.GetContext(ctx, &v, db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, false, nil
	}
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

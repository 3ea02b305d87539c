package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/utilcast/core/logger"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// ErrBuildingNotFound is returned when building metadata cannot be resolved.
var ErrBuildingNotFound = errors.New("building not found")

// Reader gives read-only access to historical records. The boolean result
// reports whether a row exists; errors are reserved for storage faults.
type Reader interface {
	BuildingMeta(ctx context.Context, id int64) (model.Building, bool, error)
	UnitAmount(ctx context.Context, buildingID int64, p period.Period) (int64, bool, error)
	UserCount(ctx context.Context, p period.Period) (int64, bool, error)
	ExamStatus(ctx context.Context, p period.Period) (bool, bool, error)
	SemesterStatus(ctx context.Context, p period.Period) (bool, bool, error)
	BuildingsWithUnitData(ctx context.Context, p period.Period) ([]int64, error)
	LatestUnitPeriod(ctx context.Context) (period.Period, bool, error)
}

// Assembly is the feature row of one building for one target month.
type Assembly struct {
	Building model.Building
	Target   period.Period
	Vector   Vector
	// Unit is the unit amount of the target month, 0 when absent.
	Unit float64
}

// Assembler builds feature rows from a Reader.
type Assembler struct {
	reader Reader
	log    logger.Logger
}

// NewAssembler returns an Assembler reading from r.
func NewAssembler(r Reader, log logger.Logger) *Assembler {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Assembler{reader: r, log: log}
}

// Assemble builds the feature row of a building for the target month. Missing
// signal rows resolve to zero or false.
func (a *Assembler) Assemble(ctx context.Context, buildingID int64, target period.Period) (Assembly, error) {
	if err := target.Validate(); err != nil {
		return Assembly{}, err
	}
	b, ok, err := a.reader.BuildingMeta(ctx, buildingID)
	if err != nil {
		return Assembly{}, fmt.Errorf("building %d: %w", buildingID, err)
	}
	if !ok {
		return Assembly{}, fmt.Errorf("%w: %d", ErrBuildingNotFound, buildingID)
	}

	var v Vector
	v[ColMonth] = float64(target.Month)
	v[ColBuilding] = float64(b.ID)
	v[ColArea] = b.Area
	for lag, p := range target.Lags(Lags) {
		if err := a.fill(ctx, &v, b.ID, p, lag); err != nil {
			return Assembly{}, fmt.Errorf("building %d at %s: %w", b.ID, p, err)
		}
	}
	a.log.Debugw("feature row assembled", map[string]any{
		"building": b.ID,
		"period":   target.String(),
		"features": v.Named(),
	})
	return Assembly{Building: b, Target: target, Vector: v, Unit: v.Get(SignalUnit, 0)}, nil
}

func (a *Assembler) fill(ctx context.Context, v *Vector, buildingID int64, p period.Period, lag int) error {
	users, ok, err := a.reader.UserCount(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		users = 0
	}
	exam, ok, err := a.reader.ExamStatus(ctx, p)
	if err != nil {
		return err
	}
	exam = exam && ok
	semester, ok, err := a.reader.SemesterStatus(ctx, p)
	if err != nil {
		return err
	}
	semester = semester && ok
	unit, ok, err := a.reader.UnitAmount(ctx, buildingID, p)
	if err != nil {
		return err
	}
	if !ok {
		unit = 0
	}
	v.Set(SignalUsers, lag, float64(users))
	v.Set(SignalExam, lag, boolValue(exam))
	v.Set(SignalSemester, lag, boolValue(semester))
	v.Set(SignalUnit, lag, float64(unit))
	return nil
}

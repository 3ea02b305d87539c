package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/utilcast/core/logger"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/period"
)

// Dataset is a bulk load of historical readings. JSON documents parse too.
type Dataset struct {
	Buildings []model.Building `yaml:"buildings"`
	Units     []UnitReading    `yaml:"units"`
	Users     []MonthlyCount   `yaml:"users"`
	Exams     []MonthlyFlag    `yaml:"exams"`
	Semesters []MonthlyFlag    `yaml:"semesters"`
}

// UnitReading is the utility usage of a building in a month.
type UnitReading struct {
	Building int64 `yaml:"building"`
	Year     int   `yaml:"year"`
	Month    int   `yaml:"month"`
	Amount   int64 `yaml:"amount"`
}

// MonthlyCount is a campus-wide count for a month.
type MonthlyCount struct {
	Year   int   `yaml:"year"`
	Month  int   `yaml:"month"`
	Amount int64 `yaml:"amount"`
}

// MonthlyFlag is a campus-wide boolean for a month.
type MonthlyFlag struct {
	Year   int  `yaml:"year"`
	Month  int  `yaml:"month"`
	Status bool `yaml:"status"`
}

// ImportStats counts the rows written by an import.
type ImportStats struct {
	Buildings int
	Units     int
	Users     int
	Exams     int
	Semesters int
}

// ParseDataset decodes a YAML or JSON dataset.
func ParseDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil && err != io.EOF {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, ds.Validate()
}

// LoadDataset reads a dataset file.
func LoadDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = f.Close() }()
	return ParseDataset(f)
}

// Validate checks every month of the dataset.
func (ds Dataset) Validate() error {
	check := func(kind string, i, y, m int) error {
		if _, err := period.New(y, m); err != nil {
			return fmt.Errorf("%s[%d]: %w", kind, i, err)
		}
		return nil
	}
	for i, b := range ds.Buildings {
		if b.ID <= 0 {
			return fmt.Errorf("buildings[%d]: id must be positive", i)
		}
	}
	for i, u := range ds.Units {
		if err := check("units", i, u.Year, u.Month); err != nil {
			return err
		}
	}
	for i, u := range ds.Users {
		if err := check("users", i, u.Year, u.Month); err != nil {
			return err
		}
	}
	for i, f := range ds.Exams {
		if err := check("exams", i, f.Year, f.Month); err != nil {
			return err
		}
	}
	for i, f := range ds.Semesters {
		if err := check("semesters", i, f.Year, f.Month); err != nil {
			return err
		}
	}
	return nil
}

// Importer writes datasets into the database.
type Importer struct {
	db  *DB
	log logger.Logger
}

// NewImporter returns an Importer over db.
func NewImporter(db *DB, log logger.Logger) *Importer {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Importer{db: db, log: log}
}

// Import writes ds in a single transaction. Buildings are upserted by id;
// readings are appended.
func (im *Importer) Import(ctx context.Context, ds Dataset) (ImportStats, error) {
	var st ImportStats
	if err := ds.Validate(); err != nil {
		return st, err
	}
	tx, err := im.db.BeginTxx(ctx, nil)
	if err != nil {
		return st, err
	}
	defer func() { _ = tx.Rollback() }()

	upsert := tx.Rebind(`INSERT INTO building (id, code, name, area) VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name, area = excluded.area`)
	for _, b := range ds.Buildings {
		if _, err := tx.ExecContext(ctx, upsert, b.ID, b.Code, b.Name, b.Area); err != nil {
			return st, fmt.Errorf("upsert building %d: %w", b.ID, err)
		}
		st.Buildings++
	}

	unit := tx.Rebind(`INSERT INTO unit (years, month, amount, building_id) VALUES (?, ?, ?, ?)`)
	for _, u := range ds.Units {
		if _, err := tx.ExecContext(ctx, unit, u.Year, u.Month, u.Amount, u.Building); err != nil {
			return st, fmt.Errorf("insert unit: %w", err)
		}
		st.Units++
	}

	users := tx.Rebind(`INSERT INTO number_of_users (years, month, amount) VALUES (?, ?, ?)`)
	for _, u := range ds.Users {
		if _, err := tx.ExecContext(ctx, users, u.Year, u.Month, u.Amount); err != nil {
			return st, fmt.Errorf("insert user count: %w", err)
		}
		st.Users++
	}

	for _, t := range []struct {
		table string
		rows  []MonthlyFlag
		n     *int
	}{
		{"exam_status", ds.Exams, &st.Exams},
		{"semester_status", ds.Semesters, &st.Semesters},
	} {
		q := tx.Rebind(`INSERT INTO ` + t.table + ` (years, month, status) VALUES (?, ?, ?)`)
		for _, f := range t.rows {
			if _, err := tx.ExecContext(ctx, q, f.Year, f.Month, f.Status); err != nil {
				return st, fmt.Errorf("insert %s: %w", t.table, err)
			}
			*t.n++
		}
	}

	if err := tx.Commit(); err != nil {
		return ImportStats{}, err
	}
	im.log.Infof("imported %d buildings, %d unit readings, %d user counts, %d exam flags, %d semester flags",
		st.Buildings, st.Units, st.Users, st.Exams, st.Semesters)
	return st, nil
}

package model

// Building is the metadata needed to score a building.
type Building struct {
	ID   int64   `db:"id" json:"id"`
	Code string  `db:"code" json:"code"`
	Name string  `db:"name" json:"name"`
	Area float64 `db:"area" json:"area"`
}

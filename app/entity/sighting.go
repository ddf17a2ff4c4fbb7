package entity

import (
	"database/sql"
	"time"
)

type Sighting struct {
	ID         uint64
	DateTime   time.Time
	City       string
	State      sql.NullString
	Shape      string
	Duration   string
	Summary    string
	Text       string
	Posted     time.Time
	Latitude   sql.NullFloat64
	Longitude  sql.NullFloat64
	Source     string
	ExternalID sql.NullString
	SourceURL  sql.NullString
}

type ShapeCount struct {
	Shape string
	Count int64
}

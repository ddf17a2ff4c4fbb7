package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
)

type SightingFilter struct {
	State    string
	City     string
	Shape    string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// where builds the shared WHERE clause for List and Count.
func (f SightingFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}

	if f.State != "" {
		conds = append(conds, "state = ?")
		args = append(args, strings.ToUpper(f.State))
	}
	if f.City != "" {
		conds = append(conds, "city LIKE ?")
		args = append(args, "%"+f.City+"%")
	}
	if f.Shape != "" {
		conds = append(conds, "shape LIKE ?")
		args = append(args, "%"+f.Shape+"%")
	}
	if f.DateFrom != nil {
		conds = append(conds, "date_time >= ?")
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		conds = append(conds, "date_time <= ?")
		args = append(args, *f.DateTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type SightingRepository struct {
	db DBTX
}

func NewSightingRepository(db DBTX) *SightingRepository {
	return &SightingRepository{db: db}
}

func (r *SightingRepository) List(ctx context.Context, filter SightingFilter) ([]*entity.Sighting, error) {
	where, args := filter.where()
	query := `
		SELECT id, date_time, city, state, shape, duration, summary, text, posted,
		       latitude, longitude, source, external_id, source_url
		FROM sightings` + where + `
		ORDER BY date_time DESC, id DESC
		LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sightings := make([]*entity.Sighting, 0)
	for rows.Next() {
		s, err := scanSighting(rows.Scan)
		if err != nil {
			return nil, err
		}
		sightings = append(sightings, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return sightings, nil
}

func (r *SightingRepository) Count(ctx context.Context, filter SightingFilter) (int64, error) {
	where, args := filter.where()
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sightings`+where, args...).Scan(&total)
	return total, err
}

func (r *SightingRepository) FindByID(ctx context.Context, id uint64) (*entity.Sighting, error) {
	query := `
		SELECT id, date_time, city, state, shape, duration, summary, text, posted,
		       latitude, longitude, source, external_id, source_url
		FROM sightings WHERE id = ?
	`
	s, err := scanSighting(r.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SightingRepository) ShapeCounts(ctx context.Context) ([]entity.ShapeCount, error) {
	query := `
		SELECT shape, COUNT(*) AS total
		FROM sightings
		GROUP BY shape
		ORDER BY total DESC, shape ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]entity.ShapeCount, 0)
	for rows.Next() {
		var c entity.ShapeCount
		if err := rows.Scan(&c.Shape, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

func scanSighting(scan rowScanner) (*entity.Sighting, error) {
	s := &entity.Sighting{}
	if err := scan(
		&s.ID,
		&s.DateTime,
		&s.City,
		&s.State,
		&s.Shape,
		&s.Duration,
		&s.Summary,
		&s.Text,
		&s.Posted,
		&s.Latitude,
		&s.Longitude,
		&s.Source,
		&s.ExternalID,
		&s.SourceURL,
	); err != nil {
		return nil, err
	}
	return s, nil
}

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-skywatch/app/repository"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"

	"github.com/labstack/echo/v4"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

type ListSightingsRequest struct {
	State    string
	City     string
	Shape    string
	DateFrom string
	DateTo   string
	Page     int
	PerPage  int

	dateFrom *time.Time
	dateTo   *time.Time
}

func NewListSightingsRequestFromContext(ctx echo.Context) (*ListSightingsRequest, error) {
	req := ListSightingsRequest{Page: 1, PerPage: service.DefaultSightingsPerPage}
	err := echo.QueryParamsBinder(ctx).
		String("state", &req.State).
		String("city", &req.City).
		String("shape", &req.Shape).
		String("date_from", &req.DateFrom).
		String("date_to", &req.DateTo).
		Int("page", &req.Page).
		Int("per_page", &req.PerPage).
		BindError()
	if err != nil {
		return nil, err
	}

	return &req, nil
}

func (r *ListSightingsRequest) Validate() error {
	if r.Page < 1 {
		return errors.New("page must be at least 1")
	}
	if r.PerPage < 1 || r.PerPage > service.MaxSightingsPerPage {
		return fmt.Errorf("per_page must be between 1 and %d", service.MaxSightingsPerPage)
	}
	if len(strings.TrimSpace(r.State)) > 2 {
		return errors.New("state must be a 2-letter code")
	}

	var err error
	if r.dateFrom, err = parseDate("date_from", r.DateFrom); err != nil {
		return err
	}
	if r.dateTo, err = parseDate("date_to", r.DateTo); err != nil {
		return err
	}
	if r.dateFrom != nil && r.dateTo != nil && r.dateFrom.After(*r.dateTo) {
		return errors.New("date_from must not be after date_to")
	}

	return nil
}

// Filter converts a validated request into a repository filter.
func (r *ListSightingsRequest) Filter() repository.SightingFilter {
	return repository.SightingFilter{
		State:    strings.TrimSpace(r.State),
		City:     strings.TrimSpace(r.City),
		Shape:    strings.TrimSpace(r.Shape),
		DateFrom: r.dateFrom,
		DateTo:   r.dateTo,
	}
}

type SightingIDRequest struct {
	ID uint64
}

func NewSightingIDRequestFromContext(ctx echo.Context) (*SightingIDRequest, error) {
	var req SightingIDRequest
	if err := echo.PathParamsBinder(ctx).Uint64("id", &req.ID).BindError(); err != nil {
		return nil, err
	}

	return &req, nil
}

func (r *SightingIDRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("id must be a positive integer")
	}

	return nil
}

func parseDate(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be an ISO-8601 date", field)
}

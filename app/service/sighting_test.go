package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/repository"
	"github.com/vibast-solutions/ms-go-skywatch/app/service"
)

type stubSightingRepo struct {
	total      int64
	lastFilter repository.SightingFilter
	sightings  map[uint64]*entity.Sighting
}

func (r *stubSightingRepo) List(_ context.Context, filter repository.SightingFilter) ([]*entity.Sighting, error) {
	r.lastFilter = filter
	return []*entity.Sighting{}, nil
}

func (r *stubSightingRepo) Count(context.Context, repository.SightingFilter) (int64, error) {
	return r.total, nil
}

func (r *stubSightingRepo) FindByID(_ context.Context, id uint64) (*entity.Sighting, error) {
	return r.sightings[id], nil
}

func (r *stubSightingRepo) ShapeCounts(context.Context) ([]entity.ShapeCount, error) {
	return []entity.ShapeCount{{Shape: "light", Count: 3}}, nil
}

func TestSightingService_ListPagination(t *testing.T) {
	repo := &stubSightingRepo{total: 51}
	svc := service.NewSightingService(repo)

	page, err := svc.List(context.Background(), repository.SightingFilter{State: "AZ"}, 3, 25)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if page.Pages != 3 || page.Page != 3 || page.PerPage != 25 || page.Total != 51 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if repo.lastFilter.Offset != 50 || repo.lastFilter.Limit != 25 || repo.lastFilter.State != "AZ" {
		t.Fatalf("unexpected filter: %+v", repo.lastFilter)
	}
}

func TestSightingService_ListClampsPaging(t *testing.T) {
	repo := &stubSightingRepo{}
	svc := service.NewSightingService(repo)

	page, err := svc.List(context.Background(), repository.SightingFilter{}, 0, 500)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if page.Page != 1 || page.PerPage != 100 || page.Pages != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestSightingService_GetNotFound(t *testing.T) {
	svc := service.NewSightingService(&stubSightingRepo{})

	if _, err := svc.Get(context.Background(), 1); !errors.Is(err, service.ErrSightingNotFound) {
		t.Fatalf("expected ErrSightingNotFound, got %v", err)
	}
}

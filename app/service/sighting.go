package service

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-skywatch/app/dto"
	"github.com/vibast-solutions/ms-go-skywatch/app/entity"
	"github.com/vibast-solutions/ms-go-skywatch/app/repository"
)

const (
	DefaultSightingsPerPage = 25
	MaxSightingsPerPage     = 100
)

var ErrSightingNotFound = errors.New("sighting not found")

type sightingRepository interface {
	List(ctx context.Context, filter repository.SightingFilter) ([]*entity.Sighting, error)
	Count(ctx context.Context, filter repository.SightingFilter) (int64, error)
	FindByID(ctx context.Context, id uint64) (*entity.Sighting, error)
	ShapeCounts(ctx context.Context) ([]entity.ShapeCount, error)
}

type SightingService interface {
	List(ctx context.Context, filter repository.SightingFilter, page, perPage int) (*dto.SightingPage, error)
	Get(ctx context.Context, id uint64) (*entity.Sighting, error)
	ShapeStats(ctx context.Context) ([]entity.ShapeCount, error)
}

type sightingService struct {
	repo sightingRepository
}

func NewSightingService(repo sightingRepository) SightingService {
	return &sightingService{repo: repo}
}

func (s *sightingService) List(ctx context.Context, filter repository.SightingFilter, page, perPage int) (*dto.SightingPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultSightingsPerPage
	}
	if perPage > MaxSightingsPerPage {
		perPage = MaxSightingsPerPage
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage
	sightings, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	pages := 1
	if total > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}

	return &dto.SightingPage{
		Sightings: sightings,
		Total:     total,
		Page:      page,
		PerPage:   perPage,
		Pages:     pages,
	}, nil
}

func (s *sightingService) Get(ctx context.Context, id uint64) (*entity.Sighting, error) {
	sighting, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sighting == nil {
		return nil, ErrSightingNotFound
	}
	return sighting, nil
}

func (s *sightingService) ShapeStats(ctx context.Context) ([]entity.ShapeCount, error) {
	return s.repo.ShapeCounts(ctx)
}

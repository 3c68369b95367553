package repository

import (
	"context"
	"errors"

	"github.com/calerio/duetrack/internal/domain"
	"gorm.io/gorm"
)

// LookupRepository resolves the shared reference entities an expiration
// points at. These are read-only from the core's perspective.
type LookupRepository interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetPriority(ctx context.Context, id string) (*domain.Priority, error)
	GetSector(ctx context.Context, id string) (*domain.Sector, error)
	ListPriorities(ctx context.Context) ([]domain.Priority, error)
	ListSectors(ctx context.Context) ([]domain.Sector, error)
}

type GormLookupRepo struct {
	db *gorm.DB
}

func NewGormLookupRepo(db *gorm.DB) *GormLookupRepo {
	return &GormLookupRepo{db: db}
}

func (r *GormLookupRepo) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userModelToDomain(&model), nil
}

func (r *GormLookupRepo) GetPriority(ctx context.Context, id string) (*domain.Priority, error) {
	var model PriorityModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return priorityModelToDomain(&model), nil
}

func (r *GormLookupRepo) GetSector(ctx context.Context, id string) (*domain.Sector, error) {
	var model SectorModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sectorModelToDomain(&model), nil
}

func (r *GormLookupRepo) ListPriorities(ctx context.Context) ([]domain.Priority, error) {
	var models []PriorityModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	priorities := make([]domain.Priority, 0, len(models))
	for i := range models {
		priorities = append(priorities, *priorityModelToDomain(&models[i]))
	}
	return priorities, nil
}

func (r *GormLookupRepo) ListSectors(ctx context.Context) ([]domain.Sector, error) {
	var models []SectorModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	sectors := make([]domain.Sector, 0, len(models))
	for i := range models {
		sectors = append(sectors, *sectorModelToDomain(&models[i]))
	}
	return sectors, nil
}

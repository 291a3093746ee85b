// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"traveldesk/internal/cache"
	"traveldesk/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageSize is the fixed number of travel requests per result page.
const PageSize = 10

// TravelRequestFilters holds the optional list criteria. Absent filters are
// no-ops; all present filters are combined with AND.
type TravelRequestFilters struct {
	Status      *models.TravelStatus
	Destination string
	StartDate   *time.Time
	EndDate     *time.Time
}

// TravelRequestPage is one page of results plus count metadata.
type TravelRequestPage struct {
	Items   []*models.TravelRequest `json:"data"`
	Total   int64                   `json:"total"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
}

// TravelRequestRepository defines the interface for travel request data operations.
type TravelRequestRepository interface {
	Create(ctx context.Context, tr *models.TravelRequest) error
	GetByID(ctx context.Context, id uint) (*models.TravelRequest, error)
	Update(ctx context.Context, tr *models.TravelRequest) error
	// List returns one page of requests matching filters. ownerID scopes the
	// query to a single owner; zero means no scope restriction (admin).
	List(ctx context.Context, ownerID uint, filters TravelRequestFilters, page int) (*TravelRequestPage, error)
	// Transition atomically re-reads the request, asks apply for the status
	// change, and persists the full derived field set. The read and write run
	// in one transaction with a row lock so concurrent transitions on the same
	// record cannot interleave.
	Transition(ctx context.Context, id uint, apply func(*models.TravelRequest) (models.StatusChange, error)) (*models.TravelRequest, error)
}

// travelRequestRepository implements TravelRequestRepository
type travelRequestRepository struct {
	db *gorm.DB
}

// NewTravelRequestRepository creates a new travel request repository
func NewTravelRequestRepository(db *gorm.DB) TravelRequestRepository {
	return &travelRequestRepository{db: db}
}

func (r *travelRequestRepository) Create(ctx context.Context, tr *models.TravelRequest) error {
	if err := r.db.WithContext(ctx).Create(tr).Error; err != nil {
		return models.NewUnavailableError(err)
	}
	return nil
}

func (r *travelRequestRepository) GetByID(ctx context.Context, id uint) (*models.TravelRequest, error) {
	var tr models.TravelRequest
	err := cache.Aside(ctx, cache.TravelRequestKey(id), &tr, cache.RequestTTL, func() error {
		return r.db.WithContext(ctx).Preload("User").First(&tr, id).Error
	})
	if err != nil {
		return nil, mapFetchErr(err, id)
	}
	return &tr, nil
}

func (r *travelRequestRepository) Update(ctx context.Context, tr *models.TravelRequest) error {
	if err := r.db.WithContext(ctx).Save(tr).Error; err != nil {
		return models.NewUnavailableError(err)
	}
	cache.Invalidate(ctx, cache.TravelRequestKey(tr.ID))
	return nil
}

func (r *travelRequestRepository) List(ctx context.Context, ownerID uint, filters TravelRequestFilters, page int) (*TravelRequestPage, error) {
	if page < 1 {
		page = 1
	}

	query := r.applyFilters(r.db.WithContext(ctx).Model(&models.TravelRequest{}), ownerID, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, models.NewUnavailableError(err)
	}

	var items []*models.TravelRequest
	err := query.
		Preload("User").
		Order("created_at ASC, id ASC").
		Limit(PageSize).
		Offset((page - 1) * PageSize).
		Find(&items).Error
	if err != nil {
		return nil, models.NewUnavailableError(err)
	}

	return &TravelRequestPage{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: PageSize,
	}, nil
}

// applyFilters composes the conjunctive filter set. An incomplete date-range
// pair is ignored entirely rather than partially applied.
func (r *travelRequestRepository) applyFilters(query *gorm.DB, ownerID uint, filters TravelRequestFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if dest := strings.TrimSpace(filters.Destination); dest != "" {
		query = query.Where("LOWER(destination) LIKE ?", "%"+strings.ToLower(dest)+"%")
	}
	if filters.StartDate != nil && filters.EndDate != nil {
		query = query.Where("departure_date BETWEEN ? AND ?", *filters.StartDate, *filters.EndDate)
	}
	if ownerID != 0 {
		query = query.Where("user_id = ?", ownerID)
	}
	return query
}

func (r *travelRequestRepository) Transition(ctx context.Context, id uint, apply func(*models.TravelRequest) (models.StatusChange, error)) (*models.TravelRequest, error) {
	var updated *models.TravelRequest

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		read := tx
		// SQLite serializes writers on its own and rejects FOR UPDATE.
		if tx.Dialector.Name() == "postgres" {
			read = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var tr models.TravelRequest
		if err := read.First(&tr, id).Error; err != nil {
			return mapFetchErr(err, id)
		}

		change, err := apply(&tr)
		if err != nil {
			return err
		}

		if err := tx.Model(&tr).Updates(change.Fields()).Error; err != nil {
			return models.NewUnavailableError(err)
		}

		if err := tx.Preload("User").First(&tr, id).Error; err != nil {
			return mapFetchErr(err, id)
		}
		updated = &tr
		return nil
	})
	if err != nil {
		return nil, err
	}

	cache.Invalidate(ctx, cache.TravelRequestKey(id))
	return updated, nil
}

// mapFetchErr keeps the NOT_FOUND / UNAVAILABLE distinction intact: a store
// failure must never masquerade as a missing record.
func mapFetchErr(err error, id uint) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError("Travel request", id)
	}
	return models.NewUnavailableError(err)
}

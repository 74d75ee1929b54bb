package gig

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gigdomain "gigbook/internal/domain/gig"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(gigdomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) GetGig(ctx context.Context, id string) (*gigdomain.Gig, error) {
	var g gigdomain.Gig
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gigdomain.ErrGigNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *PostgresRepository) ListPersonal(ctx context.Context, ownerID string) ([]gigdomain.Gig, error) {
	var gigs []gigdomain.Gig
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND band_id IS NULL", ownerID).
		Order("date asc, created_at asc").
		Find(&gigs).Error; err != nil {
		return nil, err
	}
	return gigs, nil
}

func (r *PostgresRepository) ListByBand(ctx context.Context, bandID string) ([]gigdomain.Gig, error) {
	var gigs []gigdomain.Gig
	if err := r.db.WithContext(ctx).
		Where("band_id = ?", bandID).
		Order("date asc, created_at asc").
		Find(&gigs).Error; err != nil {
		return nil, err
	}
	return gigs, nil
}

func (r *PostgresRepository) ListByBands(ctx context.Context, bandIDs []string) ([]gigdomain.Gig, error) {
	if len(bandIDs) == 0 {
		return []gigdomain.Gig{}, nil
	}
	var gigs []gigdomain.Gig
	if err := r.db.WithContext(ctx).
		Where("band_id IN ?", bandIDs).
		Order("date asc, created_at asc").
		Find(&gigs).Error; err != nil {
		return nil, err
	}
	return gigs, nil
}

func (r *PostgresRepository) CreateGig(ctx context.Context, g *gigdomain.Gig) error {
	return r.db.WithContext(ctx).Create(g).Error
}

func (r *PostgresRepository) UpdateGig(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&gigdomain.Gig{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gigdomain.ErrGigNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteGig(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&gigdomain.Gig{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gigdomain.ErrGigNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteByScope(ctx context.Context, ownerID string, bandID *string) (int64, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if bandID == nil {
		query = query.Where("band_id IS NULL")
	} else {
		query = query.Where("band_id = ?", *bandID)
	}
	result := query.Delete(&gigdomain.Gig{})
	return result.RowsAffected, result.Error
}

func (r *PostgresRepository) GetOverride(ctx context.Context, viewerID, gigID string) (*gigdomain.Override, error) {
	var o gigdomain.Override
	if err := r.db.WithContext(ctx).
		Where("viewer_id = ? AND gig_id = ?", viewerID, gigID).
		First(&o).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gigdomain.ErrOverrideNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *PostgresRepository) ListOverrides(ctx context.Context, viewerID string, gigIDs []string) ([]gigdomain.Override, error) {
	if len(gigIDs) == 0 {
		return []gigdomain.Override{}, nil
	}
	var overrides []gigdomain.Override
	if err := r.db.WithContext(ctx).
		Where("viewer_id = ? AND gig_id IN ?", viewerID, gigIDs).
		Find(&overrides).Error; err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *PostgresRepository) UpsertOverride(ctx context.Context, o *gigdomain.Override) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "viewer_id"}, {Name: "gig_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "value", "status", "notes", "hidden", "updated_at"}),
		}).
		Create(o).Error
}

func (r *PostgresRepository) DeleteOverride(ctx context.Context, viewerID, gigID string) error {
	return r.db.WithContext(ctx).
		Where("viewer_id = ? AND gig_id = ?", viewerID, gigID).
		Delete(&gigdomain.Override{}).Error
}

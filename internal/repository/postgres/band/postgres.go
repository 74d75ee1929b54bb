package band

import (
	"context"
	"errors"

	"gorm.io/gorm"

	banddomain "gigbook/internal/domain/band"
)

type PostgresRepository struct {
	db *gorm.DB
}

func NewPostgres(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Transaction(ctx context.Context, fn func(banddomain.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresRepository{db: tx})
	})
}

func (r *PostgresRepository) CreateBand(ctx context.Context, b *banddomain.Band) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *PostgresRepository) GetBand(ctx context.Context, id string) (*banddomain.Band, error) {
	var b banddomain.Band
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, banddomain.ErrBandNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *PostgresRepository) ListBandsByUser(ctx context.Context, userID string) ([]banddomain.Band, error) {
	var bands []banddomain.Band
	if err := r.db.WithContext(ctx).
		Table("bands").
		Joins("join band_members on band_members.band_id = bands.id").
		Where("band_members.user_id = ?", userID).
		Order("bands.created_at asc").
		Find(&bands).Error; err != nil {
		return nil, err
	}
	return bands, nil
}

func (r *PostgresRepository) UpdateBand(ctx context.Context, id string, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&banddomain.Band{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return banddomain.ErrBandNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteBand(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&banddomain.Band{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return banddomain.ErrBandNotFound
	}
	return nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, m *banddomain.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *PostgresRepository) GetMember(ctx context.Context, bandID, userID string) (*banddomain.Member, error) {
	var m banddomain.Member
	if err := r.db.WithContext(ctx).
		Where("band_id = ? AND user_id = ?", bandID, userID).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, banddomain.ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *PostgresRepository) ListMembers(ctx context.Context, bandID string) ([]banddomain.Member, error) {
	var members []banddomain.Member
	if err := r.db.WithContext(ctx).
		Where("band_id = ?", bandID).
		Order("joined_at asc").
		Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *PostgresRepository) UpdateMemberRole(ctx context.Context, bandID, userID, role string) error {
	result := r.db.WithContext(ctx).
		Model(&banddomain.Member{}).
		Where("band_id = ? AND user_id = ?", bandID, userID).
		Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return banddomain.ErrMemberNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteMember(ctx context.Context, bandID, userID string) error {
	result := r.db.WithContext(ctx).
		Where("band_id = ? AND user_id = ?", bandID, userID).
		Delete(&banddomain.Member{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return banddomain.ErrMemberNotFound
	}
	return nil
}

func (r *PostgresRepository) CreateInvite(ctx context.Context, invite *banddomain.Invite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *PostgresRepository) GetInviteByToken(ctx context.Context, token string) (*banddomain.Invite, error) {
	var invite banddomain.Invite
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, banddomain.ErrInviteNotFound
		}
		return nil, err
	}
	return &invite, nil
}

func (r *PostgresRepository) ListInvitesByBand(ctx context.Context, bandID string) ([]banddomain.Invite, error) {
	var invites []banddomain.Invite
	if err := r.db.WithContext(ctx).
		Where("band_id = ?", bandID).
		Order("created_at desc").
		Find(&invites).Error; err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *PostgresRepository) UpdateInviteStatus(ctx context.Context, id, status string) error {
	result := r.db.WithContext(ctx).
		Model(&banddomain.Invite{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return banddomain.ErrInviteNotFound
	}
	return nil
}

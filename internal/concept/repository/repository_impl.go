package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	conceptdomain "github.com/nominalabs/nomina/internal/concept/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) conceptdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, c *conceptdomain.Concept) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *repository) FindActiveByCode(ctx context.Context, companyID snowflake.ID, code string) (*conceptdomain.Concept, error) {
	var c conceptdomain.Concept
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND code = ? AND active = ?", companyID, code, true).
		First(&c).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListActive(ctx context.Context, companyID snowflake.ID) ([]conceptdomain.Concept, error) {
	var concepts []conceptdomain.Concept
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true).
		Order("priority ASC, code ASC").
		Find(&concepts).Error
	return concepts, err
}

func (r *repository) Deactivate(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).
		Model(&conceptdomain.Concept{}).
		Where("id = ?", id).
		Update("active", false).Error
}

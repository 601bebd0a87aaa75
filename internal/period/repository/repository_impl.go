package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	perioddomain "github.com/nominalabs/nomina/internal/period/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) perioddomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*perioddomain.Period, error) {
	var p perioddomain.Period
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) FindByNumber(ctx context.Context, companyID snowflake.ID, year, number int) (*perioddomain.Period, error) {
	var p perioddomain.Period
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND year = ? AND number = ?", companyID, year, number).
		First(&p).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) Insert(ctx context.Context, p *perioddomain.Period) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) TransitionStatus(ctx context.Context, id snowflake.ID, from, to perioddomain.Status) error {
	if !from.CanTransitionTo(to) {
		return perioddomain.ErrInvalidStatus
	}
	result := r.db.WithContext(ctx).
		Model(&perioddomain.Period{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return perioddomain.ErrStatusConflict
	}
	return nil
}

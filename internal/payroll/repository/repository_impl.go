package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	payrolldomain "github.com/nominalabs/nomina/internal/payroll/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) payrolldomain.Repository {
	return &repository{db: db}
}

func (r *repository) InsertDetails(ctx context.Context, details []payrolldomain.Detail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&details).Error
}

func (r *repository) DeleteForPeriod(ctx context.Context, periodID snowflake.ID) error {
	err := r.db.WithContext(ctx).
		Where("detail_id IN (SELECT id FROM payroll_details WHERE period_id = ?)", periodID).
		Delete(&payrolldomain.Line{}).Error
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		Delete(&payrolldomain.Detail{}).Error
}

func (r *repository) ListByPeriod(ctx context.Context, periodID snowflake.ID) ([]payrolldomain.Detail, error) {
	var details []payrolldomain.Detail
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("period_id = ?", periodID).
		Order("employee_id ASC").
		Find(&details).Error
	return details, err
}

func (r *repository) ListByPeriodForEmployees(ctx context.Context, periodID snowflake.ID, employeeIDs []snowflake.ID) ([]payrolldomain.Detail, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	var details []payrolldomain.Detail
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("period_id = ? AND employee_id IN ?", periodID, employeeIDs).
		Order("employee_id ASC").
		Find(&details).Error
	return details, err
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*payrolldomain.Detail, error) {
	var d payrolldomain.Detail
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

func (r *repository) MaxVersion(ctx context.Context, periodID snowflake.ID) (int, error) {
	var version int
	err := r.db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(version), 0) FROM payroll_details WHERE period_id = ?`,
		periodID,
	).Scan(&version).Error
	return version, err
}

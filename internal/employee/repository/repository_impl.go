package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/nominalabs/nomina/internal/authz"
	employeedomain "github.com/nominalabs/nomina/internal/employee/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) employeedomain.Repository {
	return &repository{db: db}
}

func (r *repository) ListEligible(ctx context.Context, companyID snowflake.ID, scope authz.Scope, callerEmployeeID snowflake.ID) ([]employeedomain.Employee, error) {
	q := r.db.WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true)

	switch scope {
	case authz.ScopeAll, authz.ScopeCompany:
		// company_id filter already applied
	case authz.ScopeSubordinates:
		q = q.Where("manager_id = ? OR id = ?", callerEmployeeID, callerEmployeeID)
	case authz.ScopeOwn:
		q = q.Where("id = ?", callerEmployeeID)
	default:
		return nil, employeedomain.ErrScopeDenied
	}

	var employees []employeedomain.Employee
	err := q.Order("code ASC").Find(&employees).Error
	return employees, err
}

func (r *repository) FindByID(ctx context.Context, companyID, id snowflake.ID) (*employeedomain.Employee, error) {
	var e employeedomain.Employee
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&e).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	stampingdomain "github.com/nominalabs/nomina/internal/stamping/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) stampingdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, doc *stampingdomain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*stampingdomain.Document, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repository) FindByDetailID(ctx context.Context, detailID snowflake.ID) (*stampingdomain.Document, error) {
	return r.findOne(ctx, "detail_id = ?", detailID)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*stampingdomain.Document, error) {
	var doc stampingdomain.Document
	err := r.db.WithContext(ctx).Where(query, arg).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// MarkStamped guards on status in the WHERE clause: a row that is already
// STAMPED (or CANCELLED) never has its stamp fields overwritten, even if the
// service layer misbehaves.
func (r *repository) MarkStamped(ctx context.Context, id snowflake.ID, result stampingdomain.StampResult) error {
	res := r.db.WithContext(ctx).
		Model(&stampingdomain.Document{}).
		Where("id = ? AND status IN ?", id, []stampingdomain.Status{stampingdomain.StatusPending, stampingdomain.StatusError}).
		Updates(map[string]any{
			"status":     stampingdomain.StatusStamped,
			"stamp_uuid": result.UUID,
			"signed_xml": result.SignedXML,
			"stamped_at": result.StampedAt,
			"last_error": "",
			"updated_at": result.StampedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return stampingdomain.ErrDocumentImmutable
	}
	return nil
}

func (r *repository) MarkError(ctx context.Context, id snowflake.ID, attemptErr string) error {
	res := r.db.WithContext(ctx).
		Model(&stampingdomain.Document{}).
		Where("id = ? AND status IN ?", id, []stampingdomain.Status{stampingdomain.StatusPending, stampingdomain.StatusError}).
		Updates(map[string]any{
			"status":      stampingdomain.StatusError,
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  attemptErr,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return stampingdomain.ErrDocumentImmutable
	}
	return nil
}

func (r *repository) MarkCancelled(ctx context.Context, id snowflake.ID, reason string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&stampingdomain.Document{}).
		Where("id = ? AND status = ?", id, stampingdomain.StatusStamped).
		Updates(map[string]any{
			"status":        stampingdomain.StatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return stampingdomain.ErrDocumentImmutable
	}
	return nil
}

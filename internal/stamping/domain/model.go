// Package domain models the fiscal document lifecycle: a rendered CFDI moves
// PENDING→STAMPED through the external PAC, or PENDING→ERROR with bounded
// retries, and a stamped document may only ever move to CANCELLED.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusStamped   Status = "STAMPED"
	StatusError     Status = "ERROR"
	StatusCancelled Status = "CANCELLED"
)

// Document is the fiscal receipt derived from exactly one payroll detail.
// XML and StampUUID are write-once after stamping; cancellation records a
// reason without touching the stamped artifact (legal retention).
type Document struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	CompanyID    snowflake.ID `gorm:"not null;index"`
	DetailID     snowflake.ID `gorm:"not null;uniqueIndex"`
	Status       Status       `gorm:"type:text;not null;default:'PENDING'"`
	XML          string       `gorm:"type:text;not null"`
	SignedXML    string       `gorm:"type:text"`
	StampUUID    *uuid.UUID   `gorm:"type:uuid;uniqueIndex"`
	StampedAt    *time.Time
	RetryCount   int    `gorm:"not null;default:0"`
	LastError    string `gorm:"type:text"`
	CancelReason string `gorm:"type:text"`
	CancelledAt  *time.Time
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (Document) TableName() string { return "fiscal_documents" }

var (
	ErrDocumentNotFound   = errors.New("stamping: document not found")
	ErrDocumentExists     = errors.New("stamping: detail already has a fiscal document")
	ErrDocumentImmutable  = errors.New("stamping: stamped document XML and UUID are write-once")
	ErrNotStamped         = errors.New("stamping: document has never been stamped")
	ErrAlreadyCancelled   = errors.New("stamping: document is cancelled, a terminal status")
	ErrReasonRequired     = errors.New("stamping: cancellation requires a reason")
	ErrCancelWindowClosed = errors.New("stamping: past the fiscal authority's cancellation deadline")
	ErrRetriesExhausted   = errors.New("stamping: stamping attempt limit reached")
	ErrStampClaimHeld     = errors.New("stamping: another writer holds the stamp claim for this document")
)

// StampRequest goes to the PAC.
type StampRequest struct {
	DocumentID     snowflake.ID
	XML            string
	IdempotencyKey string
}

// StampResult comes back from a successful PAC call.
type StampResult struct {
	UUID      uuid.UUID
	SignedXML string
	StampedAt time.Time
}

type CancelRequest struct {
	StampUUID uuid.UUID
	Reason    string
}

// ProviderError is a structured PAC failure. Retryable errors (network,
// timeouts, 5xx) may be re-attempted; permanent ones (the document itself was
// rejected) require regeneration and must not be retried.
type ProviderError struct {
	Code      string
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	return "pac: " + e.Code + ": " + e.Message
}

// Client is the boundary to the external certification provider.
type Client interface {
	Stamp(ctx context.Context, req StampRequest) (*StampResult, error)
	Cancel(ctx context.Context, req CancelRequest) error
}

type Service interface {
	// CreateForDetail renders and persists a PENDING document for a payroll
	// detail. One current document per detail.
	CreateForDetail(ctx context.Context, detailID snowflake.ID) (*Document, error)
	// Stamp drives PENDING or ERROR through the PAC, with bounded retries
	// and an idempotency key derived from the detail identity: a duplicate
	// call can never produce a second UUID for the same payroll detail.
	Stamp(ctx context.Context, documentID snowflake.ID) (*Document, error)
	// Cancel moves STAMPED to CANCELLED, keeping the stamped artifact.
	Cancel(ctx context.Context, documentID snowflake.ID, reason string) (*Document, error)
	Get(ctx context.Context, documentID snowflake.ID) (*Document, error)
}

type Repository interface {
	Insert(ctx context.Context, doc *Document) error
	FindByID(ctx context.Context, id snowflake.ID) (*Document, error)
	FindByDetailID(ctx context.Context, detailID snowflake.ID) (*Document, error)
	// MarkStamped is the only write path that sets XML-adjacent stamp fields,
	// and it refuses to touch a row already STAMPED.
	MarkStamped(ctx context.Context, id snowflake.ID, result StampResult) error
	MarkError(ctx context.Context, id snowflake.ID, attemptErr string) error
	MarkCancelled(ctx context.Context, id snowflake.ID, reason string, at time.Time) error
}

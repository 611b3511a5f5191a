package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/pinkalP4120/order-metafields/internal/domain"
)

// SubmissionRepository defines form submission audit log access methods
type SubmissionRepository interface {
	Create(ctx context.Context, record *domain.SubmissionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SubmissionRecord, error)
	UpdateOutcome(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus, shopifyOrderID, variantLabel, errMsg *string) error
	List(ctx context.Context, filter domain.SubmissionFilter) ([]*domain.SubmissionRecord, error)
}

// IdempotencyKeyRepository defines idempotency key data access methods
type IdempotencyKeyRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	// Create claims the key; it returns *errors.ErrConflict when the key is already held
	Create(ctx context.Context, key *domain.IdempotencyKey) error
}

// Repositories aggregates all repositories
type Repositories struct {
	Submission     SubmissionRepository
	IdempotencyKey IdempotencyKeyRepository
}

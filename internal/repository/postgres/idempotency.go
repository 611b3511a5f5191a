package postgres

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

type idempotencyKeyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIdempotencyKeyRepository creates a new idempotency key repository
func NewIdempotencyKeyRepository(db *sql.DB, logger *zap.Logger) *idempotencyKeyRepository {
	return &idempotencyKeyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByKey returns nil, nil when the key has not been seen
func (r *idempotencyKeyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	query := `
		SELECT key, submission_id, request_hash, created_at
		FROM idempotency_keys
		WHERE key = $1
	`

	var idempotencyKey domain.IdempotencyKey

	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&idempotencyKey.Key,
		&idempotencyKey.SubmissionID,
		&idempotencyKey.RequestHash,
		&idempotencyKey.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get idempotency key", zap.Error(err))
		return nil, err
	}

	return &idempotencyKey, nil
}

// Create claims the key; a key that already exists is left untouched and reported as a conflict
func (r *idempotencyKeyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	query := `
		INSERT INTO idempotency_keys (key, submission_id, request_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING
	`

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}

	res, err := r.db.ExecContext(ctx, query,
		key.Key,
		key.SubmissionID,
		key.RequestHash,
		key.CreatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create idempotency key", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrConflict{Message: "idempotency key already in use: " + key.Key}
	}

	return nil
}

package postgres

import (
	"database/sql"

	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/repository"
)

// NewRepositories creates a new set of repositories
func NewRepositories(db *sql.DB, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Submission:     NewSubmissionRepository(db, logger),
		IdempotencyKey: NewIdempotencyKeyRepository(db, logger),
	}
}

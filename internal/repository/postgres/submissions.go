package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

const defaultListLimit = 50

type submissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a new form submission repository
func NewSubmissionRepository(db *sql.DB, logger *zap.Logger) *submissionRepository {
	return &submissionRepository{
		db:     db,
		logger: logger,
	}
}

const submissionColumns = `id, order_name, shopify_order_id, variant_id, variant_label, fields, status, error, created_at, updated_at`

func (r *submissionRepository) Create(ctx context.Context, record *domain.SubmissionRecord) error {
	query := `
		INSERT INTO form_submissions (` + submissionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	if record.Status == "" {
		record.Status = domain.SubmissionStatusReceived
	}

	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.OrderName,
		record.ShopifyOrderID,
		record.VariantID,
		record.VariantLabel,
		fieldsJSON,
		record.Status,
		record.Error,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		r.logger.Error("Failed to create form submission", zap.Error(err))
		return err
	}

	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubmissionRecord, error) {
	query := `SELECT ` + submissionColumns + ` FROM form_submissions WHERE id = $1`

	record, err := scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "submission", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get form submission", zap.Error(err))
		return nil, err
	}
	return record, nil
}

func (r *submissionRepository) UpdateOutcome(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus, shopifyOrderID, variantLabel, errMsg *string) error {
	query := `
		UPDATE form_submissions
		SET status = $2,
			shopify_order_id = COALESCE($3, shopify_order_id),
			variant_label = COALESCE($4, variant_label),
			error = $5,
			updated_at = $6
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, status, shopifyOrderID, variantLabel, errMsg, time.Now())
	if err != nil {
		r.logger.Error("Failed to update form submission", zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &errors.ErrNotFound{Resource: "submission", ID: id.String()}
	}
	return nil
}

func (r *submissionRepository) List(ctx context.Context, filter domain.SubmissionFilter) ([]*domain.SubmissionRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OrderName != "" {
		args = append(args, filter.OrderName)
		where = append(where, fmt.Sprintf("order_name = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + submissionColumns + ` FROM form_submissions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list form submissions", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var records []*domain.SubmissionRecord
	for rows.Next() {
		record, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubmission(row rowScanner) (*domain.SubmissionRecord, error) {
	var record domain.SubmissionRecord
	var fieldsJSON []byte
	var shopifyOrderID sql.NullString
	var variantLabel sql.NullString
	var errMsg sql.NullString

	err := row.Scan(
		&record.ID,
		&record.OrderName,
		&shopifyOrderID,
		&record.VariantID,
		&variantLabel,
		&fieldsJSON,
		&record.Status,
		&errMsg,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(fieldsJSON) > 0 {
		if err := json.Unmarshal(fieldsJSON, &record.Fields); err != nil {
			return nil, fmt.Errorf("decode fields: %w", err)
		}
	}
	if shopifyOrderID.Valid {
		record.ShopifyOrderID = &shopifyOrderID.String
	}
	if variantLabel.Valid {
		record.VariantLabel = &variantLabel.String
	}
	if errMsg.Valid {
		record.Error = &errMsg.String
	}
	return &record, nil
}

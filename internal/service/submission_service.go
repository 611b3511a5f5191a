package service

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/repository"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

// SubmissionService records each form submission and applies it to the order
type SubmissionService struct {
	metafields *MetafieldService
	repos      *repository.Repositories
	logger     *zap.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(metafields *MetafieldService, repos *repository.Repositories, logger *zap.Logger) *SubmissionService {
	return &SubmissionService{
		metafields: metafields,
		repos:      repos,
		logger:     logger,
	}
}

// KeyInUseError is returned when an Idempotency-Key already belongs to another submission
// with the same request body. The caller replays that submission's outcome.
type KeyInUseError struct {
	SubmissionID uuid.UUID
}

func (e *KeyInUseError) Error() string {
	return "idempotency key already used by submission " + e.SubmissionID.String()
}

// Submit validates, records and applies a submission. The returned record carries the
// final status even when err is non-nil. The audit log never blocks the platform write:
// repository failures are logged and the submission proceeds.
func (s *SubmissionService) Submit(ctx context.Context, sub domain.Submission) (*domain.SubmissionRecord, *ApplyResult, error) {
	return s.SubmitWithKey(ctx, sub, "", "")
}

// SubmitWithKey is Submit guarded by an Idempotency-Key. The key is claimed once the record
// exists and before anything is written to the platform, so a concurrent retry finds it.
// A key held by another submission yields *KeyInUseError (same body) or *errors.ErrConflict.
func (s *SubmissionService) SubmitWithKey(ctx context.Context, sub domain.Submission, key, requestHash string) (*domain.SubmissionRecord, *ApplyResult, error) {
	if err := s.metafields.Validate(sub); err != nil {
		return nil, nil, err
	}

	record := &domain.SubmissionRecord{
		OrderName: sub.OrderName(),
		VariantID: sub.VariantID,
		Fields:    sub.Fields,
		Status:    domain.SubmissionStatusReceived,
	}
	recorded := true
	if err := s.repos.Submission.Create(ctx, record); err != nil {
		recorded = false
		s.logger.Warn("Failed to record submission", zap.String("order_name", record.OrderName), zap.Error(err))
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
	}

	// an unrecorded submission cannot own a key
	if recorded && key != "" {
		if err := s.claimKey(ctx, key, requestHash, record.ID); err != nil {
			msg := err.Error()
			record.Status = domain.SubmissionStatusDuplicate
			record.Error = &msg
			if uerr := s.repos.Submission.UpdateOutcome(ctx, record.ID, record.Status, nil, nil, &msg); uerr != nil {
				s.logger.Warn("Failed to record submission outcome", zap.String("submission_id", record.ID.String()), zap.Error(uerr))
			}
			return record, nil, err
		}
	}

	result, applyErr := s.metafields.Apply(ctx, sub)

	record.Status = OutcomeStatus(applyErr)
	var orderID, label, errMsg *string
	if result != nil {
		if result.Order != nil {
			orderID = &result.Order.ID
		}
		if result.VariantLabel != "" {
			label = &result.VariantLabel
		}
	}
	if applyErr != nil {
		msg := applyErr.Error()
		// keep the text the client saw so a replay answers the same
		var ve *errors.ErrValidation
		if stderrors.As(applyErr, &ve) {
			msg = ve.Error()
		}
		errMsg = &msg
	}
	record.ShopifyOrderID = orderID
	record.VariantLabel = label
	record.Error = errMsg

	if recorded {
		if err := s.repos.Submission.UpdateOutcome(ctx, record.ID, record.Status, orderID, label, errMsg); err != nil {
			s.logger.Warn("Failed to record submission outcome", zap.String("submission_id", record.ID.String()), zap.Error(err))
		}
	}

	if applyErr != nil {
		s.logger.Info("Submission not applied",
			zap.String("submission_id", record.ID.String()),
			zap.String("status", string(record.Status)),
			zap.Error(applyErr),
		)
	} else {
		s.logger.Info("Submission applied",
			zap.String("submission_id", record.ID.String()),
			zap.String("order_name", record.OrderName),
			zap.String("variant_id", record.VariantID),
		)
	}
	return record, result, applyErr
}

// claimKey stores key for submissionID. Storage failures other than a held key are logged
// and the submission proceeds without idempotency.
func (s *SubmissionService) claimKey(ctx context.Context, key, requestHash string, submissionID uuid.UUID) error {
	err := s.repos.IdempotencyKey.Create(ctx, &domain.IdempotencyKey{
		Key:          key,
		SubmissionID: submissionID,
		RequestHash:  requestHash,
	})
	if err == nil {
		return nil
	}
	var conflict *errors.ErrConflict
	if !stderrors.As(err, &conflict) {
		s.logger.Warn("Failed to store idempotency key", zap.String("key", key), zap.Error(err))
		return nil
	}

	existing, getErr := s.repos.IdempotencyKey.GetByKey(ctx, key)
	if getErr != nil || existing == nil {
		return conflict
	}
	if existing.RequestHash != requestHash {
		return &errors.ErrConflict{Message: "idempotency key conflict: same key used with different payload"}
	}
	return &KeyInUseError{SubmissionID: existing.SubmissionID}
}

// Get returns a recorded submission
func (s *SubmissionService) Get(ctx context.Context, id uuid.UUID) (*domain.SubmissionRecord, error) {
	return s.repos.Submission.GetByID(ctx, id)
}

// List returns recorded submissions, newest first
func (s *SubmissionService) List(ctx context.Context, filter domain.SubmissionFilter) ([]*domain.SubmissionRecord, error) {
	return s.repos.Submission.List(ctx, filter)
}

// OrderDetails exposes the decoded metafields for an order
func (s *SubmissionService) OrderDetails(ctx context.Context, orderName string) (*OrderDetails, error) {
	return s.metafields.ReadOrderDetails(ctx, orderName)
}

// OutcomeStatus maps an Apply error to the stored submission status
func OutcomeStatus(err error) domain.SubmissionStatus {
	if err == nil {
		return domain.SubmissionStatusApplied
	}
	var nf *errors.ErrNotFound
	if stderrors.As(err, &nf) {
		return domain.SubmissionStatusNotFound
	}
	var conflict *errors.ErrConflict
	if stderrors.As(err, &conflict) {
		return domain.SubmissionStatusDuplicate
	}
	var ve *errors.ErrValidation
	if stderrors.As(err, &ve) {
		return domain.SubmissionStatusInvalid
	}
	return domain.SubmissionStatusFailed
}

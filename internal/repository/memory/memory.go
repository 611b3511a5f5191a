// Package memory keeps submissions and idempotency keys in process memory.
// It backs the service when no database is configured and is used by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/repository"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

const defaultListLimit = 50

// NewRepositories creates an in-memory set of repositories
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		Submission:     NewSubmissionRepository(),
		IdempotencyKey: NewIdempotencyKeyRepository(),
	}
}

type submissionRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]domain.SubmissionRecord
}

// NewSubmissionRepository creates an empty in-memory submission repository
func NewSubmissionRepository() *submissionRepository {
	return &submissionRepository{records: make(map[uuid.UUID]domain.SubmissionRecord)}
}

func (r *submissionRepository) Create(ctx context.Context, record *domain.SubmissionRecord) error {
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

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[record.ID]; exists {
		return &errors.ErrConflict{Message: "submission already exists: " + record.ID.String()}
	}
	r.records[record.ID] = cloneRecord(*record)
	return nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "submission", ID: id.String()}
	}
	out := cloneRecord(record)
	return &out, nil
}

func (r *submissionRepository) UpdateOutcome(ctx context.Context, id uuid.UUID, status domain.SubmissionStatus, shopifyOrderID, variantLabel, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return &errors.ErrNotFound{Resource: "submission", ID: id.String()}
	}
	record.Status = status
	if shopifyOrderID != nil {
		record.ShopifyOrderID = stringPtr(*shopifyOrderID)
	}
	if variantLabel != nil {
		record.VariantLabel = stringPtr(*variantLabel)
	}
	record.Error = nil
	if errMsg != nil {
		record.Error = stringPtr(*errMsg)
	}
	record.UpdatedAt = time.Now()
	r.records[id] = record
	return nil
}

func (r *submissionRepository) List(ctx context.Context, filter domain.SubmissionFilter) ([]*domain.SubmissionRecord, error) {
	r.mu.RLock()
	var matched []domain.SubmissionRecord
	for _, record := range r.records {
		if filter.OrderName != "" && record.OrderName != filter.OrderName {
			continue
		}
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneRecord(record))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	start := filter.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*domain.SubmissionRecord, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, &matched[i])
	}
	return out, nil
}

type idempotencyKeyRepository struct {
	mu   sync.RWMutex
	keys map[string]domain.IdempotencyKey
}

// NewIdempotencyKeyRepository creates an empty in-memory idempotency key repository
func NewIdempotencyKeyRepository() *idempotencyKeyRepository {
	return &idempotencyKeyRepository{keys: make(map[string]domain.IdempotencyKey)}
}

// GetByKey returns nil, nil when the key has not been seen
func (r *idempotencyKeyRepository) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[key]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

// Create keeps the first record for a key; later claims get *errors.ErrConflict
func (r *idempotencyKeyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.keys[key.Key]; exists {
		return &errors.ErrConflict{Message: "idempotency key already in use: " + key.Key}
	}
	r.keys[key.Key] = *key
	return nil
}

func cloneRecord(in domain.SubmissionRecord) domain.SubmissionRecord {
	out := in
	if in.Fields != nil {
		out.Fields = append(domain.FieldSet(nil), in.Fields...)
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}

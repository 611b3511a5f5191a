package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the slice of a Shopify order this service needs
type Order struct {
	ID         string // numeric ID for REST, GID for GraphQL
	Name       string // display name, e.g. "#1033"
	Email      string
	Currency   string
	TotalPrice decimal.Decimal
	CreatedAt  *time.Time
}

// Metafield is a namespaced key/value stored on an order
type Metafield struct {
	ID        string
	Namespace string
	Key       string
	Type      string
	Value     string
}

// FullKey returns "namespace.key"
func (m Metafield) FullKey() string {
	return m.Namespace + "." + m.Key
}

// Submission is one form post: the order it targets, the variant it is for and the custom fields
type Submission struct {
	OrderID   string
	VariantID string
	Fields    FieldSet
}

// OrderName returns the Shopify display name for the submitted order number
func (s Submission) OrderName() string {
	if len(s.OrderID) > 0 && s.OrderID[0] == '#' {
		return s.OrderID
	}
	return "#" + s.OrderID
}

// SubmissionRecord is the audit row kept for each submission
type SubmissionRecord struct {
	ID             uuid.UUID
	OrderName      string
	ShopifyOrderID *string
	VariantID      string
	VariantLabel   *string
	Fields         FieldSet // JSON
	Status         SubmissionStatus
	Error          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IdempotencyKey stores idempotency information
type IdempotencyKey struct {
	Key          string
	SubmissionID uuid.UUID
	RequestHash  string
	CreatedAt    time.Time
}

// SubmissionFilter narrows submission listings
type SubmissionFilter struct {
	OrderName string
	Status    SubmissionStatus
	Limit     int
	Offset    int
}

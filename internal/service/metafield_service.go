package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/shopify"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

// MetafieldService writes form submissions onto Shopify orders
type MetafieldService struct {
	store     shopify.Store
	cfg       config.MetafieldConfig
	sanitizer *Sanitizer
	logger    *zap.Logger
}

// ApplyResult describes what a submission wrote
type ApplyResult struct {
	Order        *domain.Order
	VariantLabel string
	Metafields   []domain.Metafield
}

// OrderDetails is the decoded view of what has been stored on an order
type OrderDetails struct {
	Order               *domain.Order
	Details             map[string]any
	SubmittedVariantIDs []string
	Metafields          []domain.Metafield
}

// NewMetafieldService creates a new metafield service
func NewMetafieldService(store shopify.Store, cfg config.MetafieldConfig, logger *zap.Logger) *MetafieldService {
	return &MetafieldService{
		store:     store,
		cfg:       cfg,
		sanitizer: NewSanitizer(cfg.EscapeHTML),
		logger:    logger,
	}
}

// Validate checks the reserved fields of a submission
func (s *MetafieldService) Validate(sub domain.Submission) error {
	fields := map[string]string{}
	if sub.OrderID == "" || sub.OrderID == "#" {
		fields[domain.FieldOrderID] = "required"
	}
	if sub.VariantID == "" {
		fields[domain.FieldVariantID] = "required"
	}
	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "orderId and variantId are required", Fields: fields}
	}
	return nil
}

// Apply resolves the order and writes the submission according to the configured storage mode.
// Once the order is resolved the result names it, even when err is non-nil.
func (s *MetafieldService) Apply(ctx context.Context, sub domain.Submission) (*ApplyResult, error) {
	if err := s.Validate(sub); err != nil {
		return nil, err
	}

	name := sub.OrderName()
	s.logger.Info("Fetching order by name", zap.String("order_name", name))
	order, err := s.store.FindOrderByName(ctx, name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Matched order", zap.String("order_name", name), zap.String("order_id", order.ID))

	fields := s.sanitizer.Fields(sub.Fields)

	var result *ApplyResult
	switch s.cfg.Mode {
	case domain.StorageModeText:
		result, err = s.applyText(ctx, order, sub.VariantID, fields)
	default:
		result, err = s.applyJSON(ctx, order, sub.VariantID, fields)
	}
	if err != nil {
		return &ApplyResult{Order: order}, err
	}
	return result, nil
}

func (s *MetafieldService) applyJSON(ctx context.Context, order *domain.Order, variantID string, fields domain.FieldSet) (*ApplyResult, error) {
	label, err := s.store.GetVariantLabel(ctx, variantID)
	if err != nil {
		return nil, err
	}
	label = s.sanitizer.String(label)
	s.logger.Info("Resolved variant label", zap.String("variant_id", variantID), zap.String("label", label))

	existing, err := s.store.ListOrderMetafields(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	ns := s.cfg.Namespace
	detailsMF := findMetafield(existing, ns, domain.MetafieldKeyDetailsJSON)
	submittedMF := findMetafield(existing, ns, domain.MetafieldKeySubmittedVariantIDs)

	details := map[string]any{}
	if detailsMF != nil {
		if details, err = parseDetails(detailsMF.Value); err != nil {
			s.logger.Warn("Couldn't parse existing details_json, resetting to empty object",
				zap.String("order_id", order.ID), zap.Error(err))
			details = map[string]any{}
		}
	}

	submitted := []any{}
	if submittedMF != nil {
		if submitted, err = parseSubmittedIDs(submittedMF.Value); err != nil {
			s.logger.Warn("Couldn't parse existing submitted_variant_ids, resetting to empty array",
				zap.String("order_id", order.ID), zap.Error(err))
			submitted = []any{}
		}
	}

	if containsID(submitted, variantID) {
		if s.cfg.RejectDuplicate {
			return nil, &errors.ErrConflict{Message: fmt.Sprintf("Form already submitted for variant %s", variantID)}
		}
	} else {
		submitted = append(submitted, variantID)
	}

	key := label
	if s.cfg.DetailsKey == domain.DetailsKeyVariantID || key == "" {
		key = variantID
	}
	mergeDetails(details, key, fields, s.cfg.Merge)

	detailsValue, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode details_json: %w", err)
	}
	submittedValue, err := json.Marshal(submitted)
	if err != nil {
		return nil, fmt.Errorf("encode submitted_variant_ids: %w", err)
	}

	writes := []domain.Metafield{
		{Namespace: ns, Key: domain.MetafieldKeyDetailsJSON, Type: domain.MetafieldTypeJSON, Value: string(detailsValue)},
		{Namespace: ns, Key: domain.MetafieldKeySubmittedVariantIDs, Type: domain.MetafieldTypeJSON, Value: string(submittedValue)},
	}
	if detailsMF != nil {
		writes[0].ID = detailsMF.ID
	}
	if submittedMF != nil {
		writes[1].ID = submittedMF.ID
	}

	saved, err := s.saveConcurrently(ctx, order.ID, writes)
	if err != nil {
		return nil, err
	}
	return &ApplyResult{Order: order, VariantLabel: label, Metafields: saved}, nil
}

// saveConcurrently writes all metafields in parallel and returns them in input order.
// A failed write does not cancel the others; every write runs to completion.
func (s *MetafieldService) saveConcurrently(ctx context.Context, orderID string, writes []domain.Metafield) ([]domain.Metafield, error) {
	saved := make([]domain.Metafield, len(writes))
	var g errgroup.Group
	for i, mf := range writes {
		g.Go(func() error {
			out, err := s.store.SaveOrderMetafield(ctx, orderID, mf)
			if err != nil {
				return err
			}
			saved[i] = *out
			action := "Created"
			if mf.ID != "" {
				action = "Updated"
			}
			s.logger.Info(action+" order metafield", zap.String("order_id", orderID), zap.String("metafield", mf.FullKey()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *MetafieldService) applyText(ctx context.Context, order *domain.Order, variantID string, fields domain.FieldSet) (*ApplyResult, error) {
	existing, err := s.store.ListOrderMetafields(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	ns := s.cfg.Namespace
	writes := []domain.Metafield{
		{Namespace: ns, Key: domain.MetafieldKeyVariantID, Type: domain.MetafieldTypeSingleLineTextField, Value: s.sanitizer.String(variantID)},
	}
	// single line text metafields cannot be blank
	if formula := fields.Formula(); formula != "" {
		writes = append(writes, domain.Metafield{
			Namespace: ns, Key: domain.MetafieldKeyFormulaDetails, Type: domain.MetafieldTypeSingleLineTextField, Value: formula,
		})
	}

	saved := make([]domain.Metafield, 0, len(writes))
	for _, mf := range writes {
		if prev := findMetafield(existing, mf.Namespace, mf.Key); prev != nil {
			mf.ID = prev.ID
		}
		out, err := s.store.SaveOrderMetafield(ctx, order.ID, mf)
		if err != nil {
			return nil, err
		}
		s.logger.Info("Saved order metafield", zap.String("order_id", order.ID), zap.String("metafield", mf.FullKey()))
		saved = append(saved, *out)
	}
	return &ApplyResult{Order: order, Metafields: saved}, nil
}

// ReadOrderDetails loads an order by name and decodes the metafields this service manages
func (s *MetafieldService) ReadOrderDetails(ctx context.Context, orderName string) (*OrderDetails, error) {
	name := domain.Submission{OrderID: orderName}.OrderName()
	order, err := s.store.FindOrderByName(ctx, name)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListOrderMetafields(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	out := &OrderDetails{Order: order, Details: map[string]any{}, SubmittedVariantIDs: []string{}}
	for _, mf := range all {
		if mf.Namespace == s.cfg.Namespace {
			out.Metafields = append(out.Metafields, mf)
		}
	}
	if mf := findMetafield(all, s.cfg.Namespace, domain.MetafieldKeyDetailsJSON); mf != nil {
		if d, err := parseDetails(mf.Value); err == nil {
			out.Details = d
		}
	}
	if mf := findMetafield(all, s.cfg.Namespace, domain.MetafieldKeySubmittedVariantIDs); mf != nil {
		if ids, err := parseSubmittedIDs(mf.Value); err == nil {
			out.SubmittedVariantIDs = ids
		}
	}
	return out, nil
}

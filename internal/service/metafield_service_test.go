package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/shopify/shopifytest"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

const testOrderID = "5001"

func jsonConfig() config.MetafieldConfig {
	return config.MetafieldConfig{
		Namespace:       "custom",
		Mode:            domain.StorageModeJSON,
		DetailsKey:      domain.DetailsKeyVariantLabel,
		Merge:           domain.MergeStrategyMerge,
		RejectDuplicate: true,
		EscapeHTML:      true,
	}
}

func newFakeStore() *shopifytest.Store {
	store := shopifytest.NewStore()
	store.AddOrder(domain.Order{ID: testOrderID, Name: "#1033"})
	store.AddVariant("44", "Face Cream 50ml")
	store.AddVariant("45", "Face Cream 100ml")
	return store
}

func submission(variantID string, kv ...string) domain.Submission {
	sub := domain.Submission{OrderID: "1033", VariantID: variantID}
	for i := 0; i+1 < len(kv); i += 2 {
		sub.Fields.Set(kv[i], kv[i+1])
	}
	return sub
}

func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestApplyJSONCreatesMetafields(t *testing.T) {
	store := newFakeStore()
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	result, err := svc.Apply(context.Background(), submission("44", "base_cream", "Shea", "first_essential_oil", "Lavender"))
	require.NoError(t, err)
	assert.Equal(t, "Face Cream 50ml", result.VariantLabel)
	assert.Equal(t, testOrderID, result.Order.ID)
	require.Len(t, result.Metafields, 2)

	details, ok := store.Metafield(testOrderID, "custom", domain.MetafieldKeyDetailsJSON)
	require.True(t, ok)
	assert.Equal(t, domain.MetafieldTypeJSON, details.Type)
	want := map[string]any{
		"Face Cream 50ml": map[string]any{"base_cream": "Shea", "first_essential_oil": "Lavender"},
	}
	if diff := cmp.Diff(want, decodeJSON(t, details.Value)); diff != "" {
		t.Errorf("details_json mismatch (-want +got):\n%s", diff)
	}

	ids, ok := store.Metafield(testOrderID, "custom", domain.MetafieldKeySubmittedVariantIDs)
	require.True(t, ok)
	assert.JSONEq(t, `["44"]`, ids.Value)
}

func TestApplyJSONMergesIntoExisting(t *testing.T) {
	store := newFakeStore()
	store.SetMetafield(testOrderID, domain.Metafield{
		Namespace: "custom", Key: domain.MetafieldKeyDetailsJSON, Type: "json",
		Value: `{"Face Cream 50ml":{"base_cream":"Shea","scent":"none"},"Other":{"x":1}}`,
	})
	store.SetMetafield(testOrderID, domain.Metafield{
		Namespace: "custom", Key: domain.MetafieldKeySubmittedVariantIDs, Type: "json", Value: `[12]`,
	})
	cfg := jsonConfig()
	cfg.RejectDuplicate = false
	svc := NewMetafieldService(store, cfg, zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44", "scent", "Rose"))
	require.NoError(t, err)

	details, _ := store.Metafield(testOrderID, "custom", domain.MetafieldKeyDetailsJSON)
	want := map[string]any{
		"Face Cream 50ml": map[string]any{"base_cream": "Shea", "scent": "Rose"},
		"Other":           map[string]any{"x": float64(1)},
	}
	if diff := cmp.Diff(want, decodeJSON(t, details.Value)); diff != "" {
		t.Errorf("details_json mismatch (-want +got):\n%s", diff)
	}
	ids, _ := store.Metafield(testOrderID, "custom", domain.MetafieldKeySubmittedVariantIDs)
	assert.JSONEq(t, `[12,"44"]`, ids.Value, "stored numeric ids keep their type")

	// both writes were updates of the seeded metafields
	for _, saved := range store.Saves {
		assert.NotEmpty(t, saved.ID, saved.FullKey())
	}
}

func TestApplyJSONReplaceStrategyAndVariantIDKey(t *testing.T) {
	store := newFakeStore()
	store.SetMetafield(testOrderID, domain.Metafield{
		Namespace: "custom", Key: domain.MetafieldKeyDetailsJSON, Type: "json",
		Value: `{"44":{"old":"value"}}`,
	})
	cfg := jsonConfig()
	cfg.DetailsKey = domain.DetailsKeyVariantID
	cfg.Merge = domain.MergeStrategyReplace
	svc := NewMetafieldService(store, cfg, zap.NewNop())

	result, err := svc.Apply(context.Background(), submission("44", "new", "value"))
	require.NoError(t, err)
	assert.Equal(t, "Face Cream 50ml", result.VariantLabel)

	details, _ := store.Metafield(testOrderID, "custom", domain.MetafieldKeyDetailsJSON)
	assert.JSONEq(t, `{"44":{"new":"value"}}`, details.Value)
}

func TestApplyJSONRejectsDuplicateVariant(t *testing.T) {
	store := newFakeStore()
	store.SetMetafield(testOrderID, domain.Metafield{
		Namespace: "custom", Key: domain.MetafieldKeySubmittedVariantIDs, Type: "json", Value: `["44"]`,
	})
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44", "base_cream", "Shea"))
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Form already submitted for variant 44", conflict.Message)
	assert.Zero(t, store.SaveCount(), "nothing may be written for a duplicate")
}

func TestApplyJSONResetsUnparseableValues(t *testing.T) {
	store := newFakeStore()
	store.SetMetafield(testOrderID, domain.Metafield{
		Namespace: "custom", Key: domain.MetafieldKeyDetailsJSON, Type: "json", Value: `{broken`,
	})
	store.SetMetafield(testOrderID, domain.Metafield{
		Namespace: "custom", Key: domain.MetafieldKeySubmittedVariantIDs, Type: "json", Value: `"44"`,
	})
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44", "a", "b"))
	require.NoError(t, err, "the unparseable list resets, so 44 is not a duplicate")

	details, _ := store.Metafield(testOrderID, "custom", domain.MetafieldKeyDetailsJSON)
	assert.JSONEq(t, `{"Face Cream 50ml":{"a":"b"}}`, details.Value)
	ids, _ := store.Metafield(testOrderID, "custom", domain.MetafieldKeySubmittedVariantIDs)
	assert.JSONEq(t, `["44"]`, ids.Value)
}

func TestApplyEscapesHTML(t *testing.T) {
	store := newFakeStore()
	store.AddVariant("46", "<i>Body</i> Oil")
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("46", "note", "<b>Shea</b> & Oat"))
	require.NoError(t, err)

	details, _ := store.Metafield(testOrderID, "custom", domain.MetafieldKeyDetailsJSON)
	assert.JSONEq(t, `{"&lt;i&gt;Body&lt;/i&gt; Oil":{"note":"&lt;b&gt;Shea&lt;/b&gt; &amp; Oat"}}`, details.Value)
}

func TestApplyTextModeEscapesFormula(t *testing.T) {
	store := newFakeStore()
	cfg := jsonConfig()
	cfg.Mode = domain.StorageModeText
	svc := NewMetafieldService(store, cfg, zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44", "note", "x<y>z"))
	require.NoError(t, err)

	formula, _ := store.Metafield(testOrderID, "custom", domain.MetafieldKeyFormulaDetails)
	assert.Equal(t, "note: x&lt;y&gt;z", formula.Value)
}

func TestApplyOrderNotFound(t *testing.T) {
	store := newFakeStore()
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	sub := submission("44")
	sub.OrderID = "9999"
	_, err := svc.Apply(context.Background(), sub)
	var nf *errors.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "order", nf.Resource)
	assert.Zero(t, store.SaveCount())
}

func TestApplyValidation(t *testing.T) {
	svc := NewMetafieldService(newFakeStore(), jsonConfig(), zap.NewNop())

	_, err := svc.Apply(context.Background(), domain.Submission{OrderID: "1033"})
	var ve *errors.ErrValidation
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "required", ve.Fields[domain.FieldVariantID])
	assert.NotContains(t, ve.Fields, domain.FieldOrderID)
}

func TestApplyPlatformWriteFailure(t *testing.T) {
	store := newFakeStore()
	store.FailSave["custom.submitted_variant_ids"] = stderrors.New("boom")
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44", "a", "b"))
	var pe *errors.ErrPlatform
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "boom")
}

func TestApplyJSONMatchesNumericSubmittedID(t *testing.T) {
	store := newFakeStore()
	store.SetMetafield(testOrderID, domain.Metafield{
		Namespace: "custom", Key: domain.MetafieldKeySubmittedVariantIDs, Type: "json", Value: `[44]`,
	})
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44", "a", "b"))
	var conflict *errors.ErrConflict
	require.ErrorAs(t, err, &conflict)
}

// slowStore delays the details_json write until the submitted ids write has failed
type slowStore struct {
	*shopifytest.Store
	failed chan struct{}
}

func (s *slowStore) SaveOrderMetafield(ctx context.Context, orderID string, mf domain.Metafield) (*domain.Metafield, error) {
	if mf.Key == domain.MetafieldKeySubmittedVariantIDs {
		defer close(s.failed)
		return nil, &errors.ErrPlatform{Op: "save metafield", Err: stderrors.New("boom")}
	}
	<-s.failed
	time.Sleep(20 * time.Millisecond)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.SaveOrderMetafield(ctx, orderID, mf)
}

func TestApplyJSONFailedWriteDoesNotCancelSibling(t *testing.T) {
	store := &slowStore{Store: newFakeStore(), failed: make(chan struct{})}
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44", "a", "b"))
	require.ErrorContains(t, err, "boom")

	details, ok := store.Metafield(testOrderID, "custom", domain.MetafieldKeyDetailsJSON)
	require.True(t, ok, "details_json write runs to completion")
	assert.JSONEq(t, `{"Face Cream 50ml":{"a":"b"}}`, details.Value)
}

func TestApplyTextMode(t *testing.T) {
	store := newFakeStore()
	cfg := jsonConfig()
	cfg.Mode = domain.StorageModeText
	svc := NewMetafieldService(store, cfg, zap.NewNop())

	_, err := svc.Apply(context.Background(), submission("44",
		"base_cream", "Shea",
		"first_essential_oil", "Lavender",
		"second_essential_oil", "Tea Tree",
		"natural_preservative", "Vitamin E",
	))
	require.NoError(t, err)

	variant, ok := store.Metafield(testOrderID, "custom", domain.MetafieldKeyVariantID)
	require.True(t, ok)
	assert.Equal(t, "44", variant.Value)
	assert.Equal(t, domain.MetafieldTypeSingleLineTextField, variant.Type)

	formula, ok := store.Metafield(testOrderID, "custom", domain.MetafieldKeyFormulaDetails)
	require.True(t, ok)
	assert.Equal(t, "base_cream: Shea, first_essential_oil: Lavender, second_essential_oil: Tea Tree, natural_preservative: Vitamin E", formula.Value)

	// a second submission updates in place
	_, err = svc.Apply(context.Background(), submission("45", "base_cream", "Cocoa"))
	require.NoError(t, err)
	formula, _ = store.Metafield(testOrderID, "custom", domain.MetafieldKeyFormulaDetails)
	assert.Equal(t, "base_cream: Cocoa", formula.Value)
}

func TestApplyTextModeSkipsEmptyFormula(t *testing.T) {
	store := newFakeStore()
	cfg := jsonConfig()
	cfg.Mode = domain.StorageModeText
	svc := NewMetafieldService(store, cfg, zap.NewNop())

	result, err := svc.Apply(context.Background(), submission("44"))
	require.NoError(t, err)
	require.Len(t, result.Metafields, 1)
	assert.Equal(t, domain.MetafieldKeyVariantID, result.Metafields[0].Key)
}

func TestReadOrderDetails(t *testing.T) {
	store := newFakeStore()
	store.SetMetafield(testOrderID, domain.Metafield{Namespace: "custom", Key: domain.MetafieldKeyDetailsJSON, Type: "json", Value: `{"L":{"a":"b"}}`})
	store.SetMetafield(testOrderID, domain.Metafield{Namespace: "custom", Key: domain.MetafieldKeySubmittedVariantIDs, Type: "json", Value: `["44"]`})
	store.SetMetafield(testOrderID, domain.Metafield{Namespace: "other", Key: "x", Type: "json", Value: `{}`})
	svc := NewMetafieldService(store, jsonConfig(), zap.NewNop())

	details, err := svc.ReadOrderDetails(context.Background(), "1033")
	require.NoError(t, err)
	assert.Equal(t, []string{"44"}, details.SubmittedVariantIDs)
	assert.Len(t, details.Metafields, 2)
	assert.Contains(t, details.Details, "L")
}

package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/api/handlers"
	"github.com/pinkalP4120/order-metafields/internal/api/middleware"
	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/internal/repository"
	"github.com/pinkalP4120/order-metafields/internal/repository/memory"
	"github.com/pinkalP4120/order-metafields/internal/service"
	"github.com/pinkalP4120/order-metafields/internal/shopify/shopifytest"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

const testAdminKey = "admin-secret"

type testEnv struct {
	router *gin.Engine
	store  *shopifytest.Store
	repos  *repository.Repositories
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := middleware.HashAPIKey(testAdminKey)
	require.NoError(t, err)

	cfg := &config.Config{
		Environment: "test",
		Metafields: config.MetafieldConfig{
			Namespace:       "custom",
			Mode:            domain.StorageModeJSON,
			DetailsKey:      domain.DetailsKeyVariantLabel,
			Merge:           domain.MergeStrategyMerge,
			RejectDuplicate: true,
			EscapeHTML:      true,
		},
		API:            config.APIConfig{AdminKeyHash: hash},
		AllowedOrigins: []string{"*"},
	}
	if mutate != nil {
		mutate(cfg)
	}

	store := shopifytest.NewStore()
	store.AddOrder(domain.Order{ID: "5001", Name: "#1033"})
	store.AddVariant("44", "Face Cream 50ml")

	logger := zap.NewNop()
	repos := memory.NewRepositories()
	metafields := service.NewMetafieldService(store, cfg.Metafields, logger)
	submissions := service.NewSubmissionService(metafields, repos, logger)

	return &testEnv{router: NewRouter(cfg, submissions, repos, logger), store: store, repos: repos}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeSubmit(t *testing.T, w *httptest.ResponseRecorder) handlers.SubmitResponse {
	t.Helper()
	var resp handlers.SubmitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func adminHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testAdminKey}
}

func TestHealthAndRoot(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "POST /submit-form")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = env.do(t, http.MethodGet, "/health", "", map[string]string{middleware.RequestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))
}

func TestSubmitFormSuccess(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/submit-form", `{"orderId":"1033","variantId":44,"base_cream":"Shea","first_essential_oil":"Lavender"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeSubmit(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "Metafields updated successfully", resp.Message)
	assert.NotEmpty(t, resp.SubmissionID)

	details, ok := env.store.Metafield("5001", "custom", domain.MetafieldKeyDetailsJSON)
	require.True(t, ok)
	assert.JSONEq(t, `{"Face Cream 50ml":{"base_cream":"Shea","first_essential_oil":"Lavender"}}`, details.Value)
}

func TestSubmitFormErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/submit-form", `{"orderId":"9999","variantId":"44"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeSubmit(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Order with name #9999 not found", resp.Message)

	w = env.do(t, http.MethodPost, "/submit-form", `{"orderId":"#1033"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "orderId and variantId are required", decodeSubmit(t, w).Message)

	w = env.do(t, http.MethodPost, "/submit-form", `[1,2]`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", decodeSubmit(t, w).Message)

	w = env.do(t, http.MethodPost, "/submit-form", `{"orderId":"1033","variantId":"45"}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Variant 45 not found", decodeSubmit(t, w).Message)

	assert.Zero(t, env.store.SaveCount())
}

func TestSubmitFormDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"orderId":"1033","variantId":"44","base_cream":"Shea"}`

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/submit-form", body, nil).Code)

	w := env.do(t, http.MethodPost, "/submit-form", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Form already submitted for variant 44", decodeSubmit(t, w).Message)
}

func TestSubmitFormPlatformError(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.FailSave["custom.details_json"] = stderrors.New("shopify is down")

	w := env.do(t, http.MethodPost, "/submit-form", `{"orderId":"1033","variantId":"44","a":"b"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeSubmit(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "Error updating metafields", resp.Message)
	assert.Contains(t, resp.Error, "shopify is down")
}

func TestSubmitFormIdempotencyKey(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"orderId":"1033","variantId":"44","base_cream":"Shea"}`
	headers := map[string]string{middleware.IdempotencyKeyHeader: "form-1"}

	first := env.do(t, http.MethodPost, "/submit-form", body, headers)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	// a retry replays the stored outcome instead of tripping the duplicate guard
	second := env.do(t, http.MethodPost, "/submit-form", body, headers)
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, decodeSubmit(t, first).SubmissionID, decodeSubmit(t, second).SubmissionID)
	assert.Equal(t, 2, env.store.SaveCount())

	w := env.do(t, http.MethodPost, "/submit-form", `{"orderId":"1033","variantId":"44","base_cream":"Cocoa"}`, headers)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitFormIdempotencyReplaysFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	headers := map[string]string{middleware.IdempotencyKeyHeader: "form-2"}
	body := `{"orderId":"9999","variantId":"44"}`

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/submit-form", body, headers).Code)

	// the order now exists, but the key pins the first outcome
	env.store.AddOrder(domain.Order{ID: "6001", Name: "#9999"})
	w := env.do(t, http.MethodPost, "/submit-form", body, headers)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Order with name #9999 not found", decodeSubmit(t, w).Message)
}

func TestSubmitFormIdempotencyReplaysInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.FailSave["custom.details_json"] = &errors.ErrValidation{Message: "Value must be valid JSON"}
	headers := map[string]string{middleware.IdempotencyKeyHeader: "form-3"}
	body := `{"orderId":"1033","variantId":"44","a":"b"}`

	first := env.do(t, http.MethodPost, "/submit-form", body, headers)
	require.Equal(t, http.StatusBadRequest, first.Code, first.Body.String())
	assert.Equal(t, "Value must be valid JSON", decodeSubmit(t, first).Message)

	delete(env.store.FailSave, "custom.details_json")
	second := env.do(t, http.MethodPost, "/submit-form", body, headers)
	assert.Equal(t, http.StatusBadRequest, second.Code, second.Body.String())
	assert.Equal(t, decodeSubmit(t, first), decodeSubmit(t, second))
}

func TestSubmitFormIdempotencyKeyInFlight(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	body := `{"orderId":"1033","variantId":"44","a":"b"}`

	// another request holds the key and has not finished yet
	inFlight := &domain.SubmissionRecord{OrderName: "#1033", VariantID: "44"}
	require.NoError(t, env.repos.Submission.Create(ctx, inFlight))
	require.NoError(t, env.repos.IdempotencyKey.Create(ctx, &domain.IdempotencyKey{
		Key:          "form-4",
		SubmissionID: inFlight.ID,
		RequestHash:  middleware.HashRequest([]byte(body)),
	}))

	w := env.do(t, http.MethodPost, "/submit-form", body, map[string]string{middleware.IdempotencyKeyHeader: "form-4"})
	assert.Equal(t, http.StatusConflict, w.Code)
	resp := decodeSubmit(t, w)
	assert.Equal(t, "Submission with this Idempotency-Key is still being processed", resp.Message)
	assert.Equal(t, inFlight.ID.String(), resp.SubmissionID)
	assert.Zero(t, env.store.SaveCount())
}

func TestAdminAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/admin/submissions", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/admin/submissions", "", map[string]string{"Authorization": "Basic abc"}).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/v1/admin/submissions", "", map[string]string{"Authorization": "Bearer wrong"}).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/admin/submissions", "", adminHeaders()).Code)

	disabled := newTestEnv(t, func(cfg *config.Config) { cfg.API.AdminKeyHash = "" })
	assert.Equal(t, http.StatusServiceUnavailable, disabled.do(t, http.MethodGet, "/v1/admin/submissions", "", adminHeaders()).Code)
}

func TestAdminSubmissions(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/submit-form", `{"orderId":"1033","variantId":"44","z":"1","a":"2"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	id := decodeSubmit(t, w).SubmissionID

	w = env.do(t, http.MethodGet, "/v1/admin/submissions?order=1033&status=applied", "", adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Submissions []map[string]any `json:"submissions"`
		Limit       int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Submissions, 1)
	assert.Equal(t, id, list.Submissions[0]["id"])
	assert.Equal(t, "Face Cream 50ml", list.Submissions[0]["variant_label"])
	assert.Equal(t, 50, list.Limit)

	w = env.do(t, http.MethodGet, "/v1/admin/submissions/"+id, "", adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fields":{"z":"1","a":"2"}`)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/admin/submissions?status=bogus", "", adminHeaders()).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/v1/admin/submissions/not-a-uuid", "", adminHeaders()).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/admin/submissions/00000000-0000-0000-0000-000000000001", "", adminHeaders()).Code)
}

func TestAdminOrderMetafields(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/submit-form", `{"orderId":"1033","variantId":"44","base_cream":"Shea"}`, nil).Code)

	w := env.do(t, http.MethodGet, "/v1/admin/orders/1033/metafields", "", adminHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Order               map[string]any `json:"order"`
		Details             map[string]any `json:"details"`
		SubmittedVariantIDs []string       `json:"submitted_variant_ids"`
		Metafields          []any          `json:"metafields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "#1033", resp.Order["name"])
	assert.Equal(t, map[string]any{"base_cream": "Shea"}, resp.Details["Face Cream 50ml"])
	assert.Equal(t, []string{"44"}, resp.SubmittedVariantIDs)
	assert.Len(t, resp.Metafields, 2)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/v1/admin/orders/1/metafields", "", adminHeaders()).Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/submit-form", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/config"
)

// Client is a minimal Shopify Admin GraphQL client
type Client struct {
	shopDomain  string
	accessToken string
	apiVersion  string
	baseURL     string // overrides https://<shop> when set
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a new Shopify GraphQL client
func NewClient(cfg config.ShopifyConfig, logger *zap.Logger) *Client {
	return &Client{
		shopDomain:  normalizeShopDomain(cfg.ShopDomain),
		accessToken: cfg.AccessToken,
		apiVersion:  cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// normalizeShopDomain strips the scheme and trailing slash and expands a bare shop name
func normalizeShopDomain(shopDomain string) string {
	shopDomain = strings.TrimPrefix(shopDomain, "https://")
	shopDomain = strings.TrimPrefix(shopDomain, "http://")
	shopDomain = strings.TrimSuffix(shopDomain, "/")
	if shopDomain != "" && !strings.Contains(shopDomain, ".") {
		shopDomain += ".myshopify.com"
	}
	return shopDomain
}

// GraphQLRequest represents a GraphQL request
type GraphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQLResponse represents a GraphQL response
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError represents a GraphQL error
type GraphQLError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// UserError is the userErrors entry returned by mutations
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

func (c *Client) endpoint() string {
	base := c.baseURL
	if base == "" {
		base = "https://" + c.shopDomain
	}
	return fmt.Sprintf("%s/admin/api/%s/graphql.json", base, c.apiVersion)
}

// Execute executes a GraphQL query/mutation and decodes resp.data into out (when non-nil)
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shopify API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var graphQLResp GraphQLResponse
	if err := json.Unmarshal(body, &graphQLResp); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	if len(graphQLResp.Errors) > 0 {
		errorMessages := make([]string, len(graphQLResp.Errors))
		for i, err := range graphQLResp.Errors {
			errorMessages[i] = err.Message
		}
		return fmt.Errorf("graphQL errors: %s", strings.Join(errorMessages, "; "))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(graphQLResp.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

func userErrorsToError(op string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		if len(e.Field) > 0 {
			msgs[i] = fmt.Sprintf("%s: %s", strings.Join(e.Field, "."), e.Message)
		} else {
			msgs[i] = e.Message
		}
	}
	return fmt.Errorf("%s userErrors: %s", op, strings.Join(msgs, "; "))
}

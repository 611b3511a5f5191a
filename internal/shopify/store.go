package shopify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/domain"
)

// Store is the set of platform calls the submission flow needs
type Store interface {
	// FindOrderByName returns the order whose display name equals name exactly (e.g. "#1033").
	// Returns *errors.ErrNotFound when nothing matches.
	FindOrderByName(ctx context.Context, name string) (*domain.Order, error)
	// GetVariantLabel returns "<product title> <variant title>", trimmed.
	GetVariantLabel(ctx context.Context, variantID string) (string, error)
	ListOrderMetafields(ctx context.Context, orderID string) ([]domain.Metafield, error)
	// SaveOrderMetafield updates mf when mf.ID is set and creates it on the order otherwise.
	SaveOrderMetafield(ctx context.Context, orderID string, mf domain.Metafield) (*domain.Metafield, error)
}

// NewStore builds the Store selected by cfg.Backend
func NewStore(cfg config.ShopifyConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendGraphQL:
		return NewGraphQLStore(NewClient(cfg, logger), cfg, logger), nil
	case config.BackendREST, "":
		return NewRESTStore(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown shopify backend %q", cfg.Backend)
	}
}

// VariantLabel joins product and variant titles the way the storefront shows them
func VariantLabel(productTitle, variantTitle string) string {
	return strings.TrimSpace(productTitle + " " + variantTitle)
}

// toGID converts a numeric ID to a Shopify GID (gid://shopify/<kind>/<id>); GIDs pass through
func toGID(kind, id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return fmt.Sprintf("gid://shopify/%s/%s", kind, id)
}

// extractIDFromGID extracts the numeric ID from a Shopify GID (gid://shopify/Order/123); plain numbers pass through
func extractIDFromGID(gid string) (uint64, error) {
	s := gid
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.Index(s, "?"); idx >= 0 {
		s = s[:idx]
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid shopify id %q", gid)
	}
	return id, nil
}

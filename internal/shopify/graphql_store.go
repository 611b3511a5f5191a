package shopify

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

const metafieldPageSize = 100

// GraphQLStore implements Store on top of the Admin GraphQL API
type GraphQLStore struct {
	client      *Client
	orderLimit  int
	orderStatus string
	logger      *zap.Logger
}

// NewGraphQLStore creates a Store backed by client
func NewGraphQLStore(client *Client, cfg config.ShopifyConfig, logger *zap.Logger) *GraphQLStore {
	return &GraphQLStore{
		client:      client,
		orderLimit:  cfg.OrderLimit,
		orderStatus: cfg.OrderStatus,
		logger:      logger,
	}
}

func (s *GraphQLStore) FindOrderByName(ctx context.Context, name string) (*domain.Order, error) {
	search := "name:" + name
	if s.orderStatus != "" {
		search += " status:" + s.orderStatus
	}
	var result struct {
		Orders struct {
			Edges []struct {
				Node struct {
					ID            string     `json:"id"`
					Name          string     `json:"name"`
					Email         string     `json:"email"`
					CreatedAt     *time.Time `json:"createdAt"`
					TotalPriceSet struct {
						ShopMoney struct {
							Amount       string `json:"amount"`
							CurrencyCode string `json:"currencyCode"`
						} `json:"shopMoney"`
					} `json:"totalPriceSet"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"orders"`
	}
	variables := map[string]interface{}{"first": s.orderLimit, "query": search}
	if err := s.client.Execute(ctx, OrdersByNameQuery, variables, &result); err != nil {
		return nil, &errors.ErrPlatform{Op: "list orders", Err: err}
	}

	// the search is fuzzy; only an exact name counts
	for _, edge := range result.Orders.Edges {
		node := edge.Node
		if node.Name != name {
			continue
		}
		order := &domain.Order{
			ID:        node.ID,
			Name:      node.Name,
			Email:     node.Email,
			Currency:  node.TotalPriceSet.ShopMoney.CurrencyCode,
			CreatedAt: node.CreatedAt,
		}
		if amt, err := decimal.NewFromString(node.TotalPriceSet.ShopMoney.Amount); err == nil {
			order.TotalPrice = amt
		}
		return order, nil
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: name}
}

func (s *GraphQLStore) GetVariantLabel(ctx context.Context, variantID string) (string, error) {
	var result struct {
		ProductVariant *struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Product struct {
				Title string `json:"title"`
			} `json:"product"`
		} `json:"productVariant"`
	}
	variables := map[string]interface{}{"id": toGID("ProductVariant", variantID)}
	if err := s.client.Execute(ctx, VariantLabelQuery, variables, &result); err != nil {
		return "", &errors.ErrPlatform{Op: "get variant", Err: err}
	}
	if result.ProductVariant == nil {
		return "", &errors.ErrNotFound{Resource: "variant", ID: variantID}
	}
	return VariantLabel(result.ProductVariant.Product.Title, result.ProductVariant.Title), nil
}

func (s *GraphQLStore) ListOrderMetafields(ctx context.Context, orderID string) ([]domain.Metafield, error) {
	var result struct {
		Order *struct {
			Metafields struct {
				Edges []struct {
					Node metafieldNode `json:"node"`
				} `json:"edges"`
			} `json:"metafields"`
		} `json:"order"`
	}
	variables := map[string]interface{}{"id": toGID("Order", orderID), "first": metafieldPageSize}
	if err := s.client.Execute(ctx, OrderMetafieldsQuery, variables, &result); err != nil {
		return nil, &errors.ErrPlatform{Op: "list metafields", Err: err}
	}
	if result.Order == nil {
		return nil, &errors.ErrNotFound{Resource: "order", ID: orderID}
	}
	out := make([]domain.Metafield, 0, len(result.Order.Metafields.Edges))
	for _, edge := range result.Order.Metafields.Edges {
		out = append(out, edge.Node.toDomain())
	}
	return out, nil
}

// SaveOrderMetafield uses metafieldsSet, which upserts by owner/namespace/key, so mf.ID is not needed
func (s *GraphQLStore) SaveOrderMetafield(ctx context.Context, orderID string, mf domain.Metafield) (*domain.Metafield, error) {
	var result struct {
		MetafieldsSet struct {
			Metafields []metafieldNode `json:"metafields"`
			UserErrors []UserError     `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	variables := map[string]interface{}{
		"metafields": []MetafieldsSetInput{{
			OwnerID:   toGID("Order", orderID),
			Namespace: mf.Namespace,
			Key:       mf.Key,
			Type:      mf.Type,
			Value:     mf.Value,
		}},
	}
	if err := s.client.Execute(ctx, MetafieldsSetMutation, variables, &result); err != nil {
		return nil, &errors.ErrPlatform{Op: "set metafield " + mf.FullKey(), Err: err}
	}
	if err := userErrorsToError("metafieldsSet", result.MetafieldsSet.UserErrors); err != nil {
		return nil, &errors.ErrPlatform{Op: "set metafield " + mf.FullKey(), Err: err}
	}
	if len(result.MetafieldsSet.Metafields) == 0 {
		return nil, &errors.ErrPlatform{Op: "set metafield " + mf.FullKey(), Err: fmt.Errorf("no metafield returned")}
	}
	saved := result.MetafieldsSet.Metafields[0].toDomain()
	s.logger.Debug("Set order metafield",
		zap.String("order_id", orderID),
		zap.String("metafield", saved.FullKey()),
		zap.Bool("update", mf.ID != ""),
	)
	return &saved, nil
}

type metafieldNode struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

func (n metafieldNode) toDomain() domain.Metafield {
	return domain.Metafield{
		ID:        n.ID,
		Namespace: n.Namespace,
		Key:       n.Key,
		Type:      n.Type,
		Value:     n.Value,
	}
}

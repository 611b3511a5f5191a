package shopify

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"go.uber.org/zap"

	"github.com/pinkalP4120/order-metafields/internal/config"
	"github.com/pinkalP4120/order-metafields/internal/domain"
	"github.com/pinkalP4120/order-metafields/pkg/errors"
)

// RESTStore implements Store with the go-shopify REST client
type RESTStore struct {
	client      *goshopify.Client
	orderLimit  int
	orderStatus string
	logger      *zap.Logger
}

// orderListOptions is encoded into the orders.json query string
type orderListOptions struct {
	Limit  int    `url:"limit,omitempty"`
	Status string `url:"status,omitempty"`
	Name   string `url:"name,omitempty"`
}

// NewRESTStore creates a Store using the Admin REST API.
// Extra options are appended after the defaults (tests pass goshopify.WithHTTPClient).
func NewRESTStore(cfg config.ShopifyConfig, logger *zap.Logger, opts ...goshopify.Option) (*RESTStore, error) {
	all := []goshopify.Option{goshopify.WithRetry(3)}
	if cfg.APIVersion != "" {
		all = append(all, goshopify.WithVersion(cfg.APIVersion))
	}
	all = append(all, opts...)

	client, err := goshopify.NewClient(goshopify.App{}, normalizeShopDomain(cfg.ShopDomain), cfg.AccessToken, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create shopify client: %w", err)
	}
	return &RESTStore{
		client:      client,
		orderLimit:  cfg.OrderLimit,
		orderStatus: cfg.OrderStatus,
		logger:      logger,
	}, nil
}

func (s *RESTStore) FindOrderByName(ctx context.Context, name string) (*domain.Order, error) {
	orders, err := s.client.Order.List(ctx, orderListOptions{
		Limit:  s.orderLimit,
		Status: s.orderStatus,
		Name:   name,
	})
	if err != nil {
		return nil, &errors.ErrPlatform{Op: "list orders", Err: err}
	}

	for _, o := range orders {
		if o.Name != name {
			continue
		}
		order := &domain.Order{
			ID:        strconv.FormatUint(o.Id, 10),
			Name:      o.Name,
			Email:     o.Email,
			Currency:  o.Currency,
			CreatedAt: o.CreatedAt,
		}
		if o.TotalPrice != nil {
			order.TotalPrice = *o.TotalPrice
		}
		return order, nil
	}
	s.logger.Debug("Order not in lookup page", zap.String("name", name), zap.Int("scanned", len(orders)))
	return nil, &errors.ErrNotFound{Resource: "order", ID: name}
}

func (s *RESTStore) GetVariantLabel(ctx context.Context, variantID string) (string, error) {
	id, err := extractIDFromGID(variantID)
	if err != nil {
		return "", &errors.ErrValidation{Message: fmt.Sprintf("invalid variant id %q", variantID)}
	}

	variant, err := s.client.Variant.Get(ctx, id, nil)
	if err != nil {
		if isNotFound(err) {
			return "", &errors.ErrNotFound{Resource: "variant", ID: variantID}
		}
		return "", &errors.ErrPlatform{Op: "get variant", Err: err}
	}

	product, err := s.client.Product.Get(ctx, variant.ProductId, nil)
	if err != nil {
		return "", &errors.ErrPlatform{Op: "get product", Err: err}
	}
	return VariantLabel(product.Title, variant.Title), nil
}

func (s *RESTStore) ListOrderMetafields(ctx context.Context, orderID string) ([]domain.Metafield, error) {
	id, err := extractIDFromGID(orderID)
	if err != nil {
		return nil, err
	}
	metafields, err := s.client.Order.ListMetafields(ctx, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, &errors.ErrNotFound{Resource: "order", ID: orderID}
		}
		return nil, &errors.ErrPlatform{Op: "list metafields", Err: err}
	}
	out := make([]domain.Metafield, 0, len(metafields))
	for _, mf := range metafields {
		out = append(out, fromRESTMetafield(mf))
	}
	return out, nil
}

func (s *RESTStore) SaveOrderMetafield(ctx context.Context, orderID string, mf domain.Metafield) (*domain.Metafield, error) {
	id, err := extractIDFromGID(orderID)
	if err != nil {
		return nil, err
	}

	in := goshopify.Metafield{
		Namespace:     mf.Namespace,
		Key:           mf.Key,
		Value:         mf.Value,
		OwnerId:       id,
		OwnerResource: "order",
	}
	// untyped constants so this compiles against go-shopify's metafield type
	switch mf.Type {
	case domain.MetafieldTypeJSON:
		in.Type = domain.MetafieldTypeJSON
	default:
		in.Type = domain.MetafieldTypeSingleLineTextField
	}

	var saved *goshopify.Metafield
	if mf.ID != "" {
		mfID, err := extractIDFromGID(mf.ID)
		if err != nil {
			return nil, err
		}
		in.Id = mfID
		saved, err = s.client.Order.UpdateMetafield(ctx, id, in)
		if err != nil {
			return nil, &errors.ErrPlatform{Op: "update metafield " + mf.FullKey(), Err: err}
		}
	} else {
		saved, err = s.client.Order.CreateMetafield(ctx, id, in)
		if err != nil {
			return nil, &errors.ErrPlatform{Op: "create metafield " + mf.FullKey(), Err: err}
		}
	}

	out := fromRESTMetafield(*saved)
	s.logger.Debug("Saved order metafield",
		zap.String("order_id", orderID),
		zap.String("metafield", out.FullKey()),
		zap.Bool("update", mf.ID != ""),
	)
	return &out, nil
}

func fromRESTMetafield(mf goshopify.Metafield) domain.Metafield {
	return domain.Metafield{
		ID:        strconv.FormatUint(mf.Id, 10),
		Namespace: mf.Namespace,
		Key:       mf.Key,
		Type:      string(mf.Type),
		Value:     metafieldValue(mf.Value),
	}
}

// metafieldValue flattens the REST value, which decodes as a string for text and json types
func metafieldValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func isNotFound(err error) bool {
	var rerr goshopify.ResponseError
	if stderrors.As(err, &rerr) {
		return rerr.Status == http.StatusNotFound
	}
	var prerr *goshopify.ResponseError
	if stderrors.As(err, &prerr) {
		return prerr.Status == http.StatusNotFound
	}
	return false
}

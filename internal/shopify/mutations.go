package shopify

// MetafieldsSetMutation creates or updates metafields on a resource (here, an Order)
const MetafieldsSetMutation = `
mutation metafieldsSet($metafields: [MetafieldsSetInput!]!) {
  metafieldsSet(metafields: $metafields) {
    metafields {
      id
      key
      namespace
      type
      value
    }
    userErrors {
      field
      message
      code
    }
  }
}
`

// MetafieldsSetInput is used with metafieldsSet mutation
type MetafieldsSetInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

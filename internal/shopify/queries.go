package shopify

// OrdersByNameQuery searches orders with a Shopify search string (e.g. "name:#1033")
const OrdersByNameQuery = `
query getOrdersByName($first: Int!, $query: String!) {
  orders(first: $first, query: $query) {
    edges {
      node {
        id
        name
        email
        createdAt
        totalPriceSet {
          shopMoney {
            amount
            currencyCode
          }
        }
      }
    }
  }
}
`

// VariantLabelQuery fetches the titles needed to build "<product> <variant>"
const VariantLabelQuery = `
query getVariantLabel($id: ID!) {
  productVariant(id: $id) {
    id
    title
    product {
      title
    }
  }
}
`

// OrderMetafieldsQuery lists metafields on an order
const OrderMetafieldsQuery = `
query getOrderMetafields($id: ID!, $first: Int!) {
  order(id: $id) {
    id
    metafields(first: $first) {
      edges {
        node {
          id
          namespace
          key
          type
          value
        }
      }
    }
  }
}
`

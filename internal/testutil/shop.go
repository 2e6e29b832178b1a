package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitsmind/graphsql/internal/entity"
)

// ShopCUE declares the entities shared by package tests: a category tree
// with products, orders and refunds, plus a many-to-many tag relation that
// the plan compiler must reject.
const ShopCUE = `
entity: categories: {
	columns: ["name", "slug", "parent_id", "status"]
	relations: {
		parent:   {target: "categories", cardinality: "many_to_one", foreign_key: "parent_id"}
		children: {target: "categories", cardinality: "one_to_many", foreign_key: "parent_id"}
		products: {target: "products", cardinality: "one_to_many", foreign_key: "category_id"}
		tags:     {target: "tags", cardinality: "many_to_many", pivot: "category_tag"}
	}
}

entity: products: {
	columns: ["name", "price", "status", "category_id", "cost"]
	hidden: ["cost"]
	queryable: ["name", "price", "status", "category_id"]
	relations: {
		category: {target: "categories", cardinality: "many_to_one", foreign_key: "category_id"}
		orders:   {target: "orders", cardinality: "one_to_many", foreign_key: "product_id"}
	}
}

entity: orders: {
	columns: ["product_id", "customer", "total", "status"]
	relations: {
		product: {target: "products", cardinality: "many_to_one", foreign_key: "product_id"}
		refunds: {target: "refunds", cardinality: "one_to_many", foreign_key: "order_id"}
	}
}

entity: refunds: {
	columns: ["order_id", "total", "reason"]
	timestamps: false
}

entity: tags: {
	columns: ["name"]
}
`

// Shop returns a registry built from ShopCUE.
func Shop(t testing.TB) *entity.Registry {
	t.Helper()
	reg, err := entity.LoadString(ShopCUE)
	require.NoError(t, err)
	return reg
}

package entity

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopCUE = `
entity: categories: {
	columns: ["name", "slug", "parent_id", "status"]
	relations: {
		parent:   {target: "categories", cardinality: "many_to_one", foreign_key: "parent_id"}
		children: {target: "categories", cardinality: "one_to_many", foreign_key: "parent_id"}
		products: {target: "products", cardinality: "one_to_many", foreign_key: "category_id"}
	}
}

entity: products: {
	table: "shop_products"
	columns: ["name", "price", "status", "category_id", "cost"]
	hidden: ["cost"]
	queryable: ["status", "price"]
	timestamps: false
}
`

func TestCompileEntity(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(shopCUE)
	require.NoError(t, v.Err())

	e, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.products")))
	require.NoError(t, err)

	assert.Equal(t, "products", e.Name)
	assert.Equal(t, "shop_products", e.Table)
	assert.Equal(t, []string{"name", "price", "status", "category_id", "cost"}, e.Columns)
	assert.Equal(t, []string{"cost"}, e.Hidden)
	assert.Equal(t, []string{"status", "price"}, e.Queryable)
	assert.Equal(t, []string{}, e.Timestamps)
	assert.Empty(t, e.Relations)
}

func TestCompileEntity_Relations(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(shopCUE)
	require.NoError(t, v.Err())

	e, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.categories")))
	require.NoError(t, err)

	require.Len(t, e.Relations, 3)
	assert.Equal(t, Relation{
		Name:        "children",
		Target:      "categories",
		Cardinality: OneToMany,
		ForeignKey:  "parent_id",
	}, e.Relations["children"])
	assert.Equal(t, ManyToOne, e.Relations["parent"].Cardinality)
	assert.Nil(t, e.Queryable)
	assert.Nil(t, e.Timestamps)
}

func TestCompileEntity_MissingColumns(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`entity: broken: { table: "broken" }`)
	require.NoError(t, v.Err())

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.broken")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns is required")
}

func TestCompileEntity_BadCardinality(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		entity: a: {
			columns: ["name"]
			relations: b: {target: "a", cardinality: "sideways", foreign_key: "a_id"}
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.a")))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "cardinality", ce.Field)
	assert.Contains(t, ce.Message, "sideways")
}

func TestCompileEntity_RenamedTimestamps(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`entity: a: { columns: ["name"], timestamps: ["inserted_at", "modified_at"] }`)
	require.NoError(t, v.Err())

	e, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.a")))
	require.NoError(t, err)
	assert.Equal(t, []string{"inserted_at", "modified_at"}, e.Timestamps)
}

func TestLoadString(t *testing.T) {
	reg, err := LoadString(shopCUE)
	require.NoError(t, err)

	assert.Equal(t, []string{"categories", "products"}, reg.Names())
	cats, err := reg.Entity("categories")
	require.NoError(t, err)
	assert.Equal(t, "categories", cats.Table)
	assert.Equal(t, []string{"created_at", "updated_at"}, cats.Timestamps)
}

func TestLoadString_ValidatesRelations(t *testing.T) {
	_, err := LoadString(`
		entity: orders: {
			columns: ["total"]
			relations: product: {target: "products", cardinality: "many_to_one", foreign_key: "product_id"}
		}
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown target entity "products"`)
}

func TestLoadString_NoEntities(t *testing.T) {
	_, err := LoadString(`other: 1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entities declared")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.cue"), []byte("package shop\n"+shopCUE), 0o644))

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories", "products"}, reg.Names())
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entities directory")
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "shop.cue")
	require.NoError(t, os.WriteFile(file, []byte("package shop\n"+shopCUE), 0o644))

	reg, err := LoadPath(file)
	require.NoError(t, err)
	_, err = reg.Entity("categories")
	assert.NoError(t, err)

	reg, err = LoadPath(dir)
	require.NoError(t, err)
	_, err = reg.Entity("categories")
	assert.NoError(t, err)

	_, err = LoadPath(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

func TestLoadPath_ReportsFilename(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(file, []byte("entity: x: {columns: [\n"), 0o644))

	_, err := LoadPath(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.cue")
}

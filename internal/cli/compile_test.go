package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitsmind/graphsql/internal/cipher"
)

func TestCompile_Text(t *testing.T) {
	out, err := execute(t, "compile", writeShop(t), "--entity", "categories", "--graph", "{name,children:1:5{name},products.count}")
	require.NoError(t, err)

	assert.Contains(t, out, "Compiled {name,children:1:5{name},products.count} for categories (literal)")
	assert.Contains(t, out, "Fingerprint: ")
	assert.Contains(t, out, "categories: [id name]\n")
	assert.Contains(t, out, "  count: products\n")
	assert.Contains(t, out, "  children -> categories: [id name parent_id]\n")
	assert.Contains(t, out, "    window: offset 0, limit 5\n")
	assert.NotContains(t, out, "SQL:")
}

func TestCompile_JSONWithSQL(t *testing.T) {
	out, err := execute(t, "compile", writeShop(t),
		"--entity", "products", "--graph", "{name,category{name}}",
		"--sql", "--param", "page=2", "--param", "length=10", "--param", "order_by=price,asc",
		"--format", "json")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "products", data["entity"])
	assert.Equal(t, "literal", data["strategy"])
	assert.Len(t, data["fingerprint"], 64)
	assert.Equal(t, "SELECT products.id, products.name, products.category_id FROM products ORDER BY products.price COLLATE BINARY ASC, products.id COLLATE BINARY ASC LIMIT ? OFFSET ?", data["sql"])
	assert.Equal(t, []any{10.0, 10.0}, data["args"])

	p := data["plan"].(map[string]any)
	assert.Equal(t, []any{"id", "name", "category_id"}, p["select"])
	assert.Equal(t, []any{"category_id"}, p["injected"])
}

func TestCompile_SameFingerprintForCipher(t *testing.T) {
	shop := writeShop(t)
	graph := "{name,children{name}}"
	payload, err := cipher.Encrypt(graph, "7.3")
	require.NoError(t, err)

	literal, err := execute(t, "compile", shop, "-e", "categories", "-g", graph, "--format", "json")
	require.NoError(t, err)
	ciphered, err := execute(t, "compile", shop, "-e", "categories", "--cipher", payload, "--secret", "7.3", "--format", "json")
	require.NoError(t, err)

	l := decodeResponse(t, literal).Data.(map[string]any)
	c := decodeResponse(t, ciphered).Data.(map[string]any)
	assert.Equal(t, "cipher", c["strategy"])
	assert.Equal(t, graph, c["graph"])
	assert.Equal(t, l["fingerprint"], c["fingerprint"])
}

func TestCompile_CipherWithoutSecret(t *testing.T) {
	out, err := execute(t, "compile", writeShop(t), "-e", "categories", "--cipher", "}je[")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [CIPHER_NOT_CONFIGURED]")
}

func TestCompile_Errors(t *testing.T) {
	shop := writeShop(t)

	tests := []struct {
		name     string
		args     []string
		exitCode int
		wantOut  string
	}{
		{"unknown relation", []string{"compile", shop, "-e", "categories", "-g", "{name,ghosts{id}}"}, ExitFailure, "Error [UNKNOWN_RELATION]"},
		{"malformed", []string{"compile", shop, "-e", "categories", "-g", "{name"}, ExitFailure, "Error [MALFORMED_EXPRESSION]"},
		{"unknown entity", []string{"compile", shop, "-e", "ghosts", "-g", "{id}"}, ExitFailure, "Error [UNKNOWN_ENTITY]"},
		{"many to many", []string{"compile", shop, "-e", "categories", "-g", "{name,tags{name}}"}, ExitFailure, "Error [UNSUPPORTED_RELATION_CARDINALITY]"},
		{"bad assist field", []string{"compile", shop, "-e", "categories", "-g", "{name}", "--sql", "-p", "page=two"}, ExitFailure, "Error [E001]"},
		{"missing entities", []string{"compile", "/nonexistent/entities", "-e", "categories", "-g", "{id}"}, ExitCommandError, "Error [E005]"},
		{"no graph", []string{"compile", shop, "-e", "categories"}, ExitCommandError, "one of --graph or --cipher is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestCompile_MissingEntityFlag(t *testing.T) {
	_, err := execute(t, "compile", writeShop(t), "-g", "{id}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "entity" not set`)
}

func TestCompile_OutputFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "plan.json")

	out, err := execute(t, "compile", writeShop(t), "-e", "orders", "-g", "{total,refunds.sum.total}", "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote plan to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var p map[string]any
	require.NoError(t, json.Unmarshal(data, &p))
	assert.Equal(t, "orders", p["entity"])
	assert.Contains(t, p["sums"], "refunds")
}

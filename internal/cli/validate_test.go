package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, err := execute(t, "validate", writeShop(t))
	require.NoError(t, err)

	assert.Contains(t, out, "5 entities valid")
	assert.Contains(t, out, "categories (table categories, key id): 4 column(s), relations [children:one_to_many parent:many_to_one products:one_to_many tags:many_to_many]")
	assert.Contains(t, out, "refunds (table refunds, key id): 3 column(s)\n")
}

func TestValidate_Directory(t *testing.T) {
	shop := writeShop(t)

	out, err := execute(t, "validate", filepath.Dir(shop), "--format", "json", "--verbose")
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, true, data["valid"])
	assert.Len(t, data["entities"], 5)
}

func TestValidate_ReportsEveryRelationProblem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
entity: posts: {
	columns: ["title", "author_id"]
	relations: {
		author:   {target: "users", cardinality: "many_to_one", foreign_key: "author_id"}
		comments: {target: "posts", cardinality: "one_to_many"}
	}
}
`), 0o644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Validation failed")
	assert.Contains(t, out, `E102: entity posts: relation author: unknown target entity "users"`)
	assert.Contains(t, out, "E102: entity posts: relation comments: one_to_many relation requires foreign_key")

	out, err = execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	data := decodeResponse(t, out).Data.(map[string]any)
	assert.Equal(t, false, data["valid"])
	assert.Len(t, data["errors"], 2)
}

func TestValidate_LoadErrors(t *testing.T) {
	empty := t.TempDir()
	noEntities := filepath.Join(t.TempDir(), "none.cue")
	require.NoError(t, os.WriteFile(noEntities, []byte("other: 1\n"), 0o644))

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing", "/nonexistent/entities", ErrCodeNotFound},
		{"empty dir", empty, ErrCodeNoFiles},
		{"no entity field", noEntities, ErrCodeInvalidEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, "validate", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Render prints a result as stable text: one block per case with the
// resolved graph, the rendered SQL and its arguments, or the error code.
// Fingerprints are left out so golden files stay readable.
func Render(result *Result) []byte {
	var buf strings.Builder
	for i, c := range result.Cases {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "# %s\n", c.Name)
		fmt.Fprintf(&buf, "entity: %s\n", c.Entity)
		if c.Strategy != "" {
			fmt.Fprintf(&buf, "strategy: %s\n", c.Strategy)
		}
		if c.Graph != "" {
			fmt.Fprintf(&buf, "graph: %s\n", c.Graph)
		}
		if c.Error != "" {
			fmt.Fprintf(&buf, "error: %s\n", c.Error)
			continue
		}
		fmt.Fprintf(&buf, "sql: %s\n", c.SQL)
		fmt.Fprintf(&buf, "args: %v\n", c.Args)
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares the rendered cases
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if output doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Render(result))
}

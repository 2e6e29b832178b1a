package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/bitsmind/graphsql/internal/plan"
)

// AssertionError is returned when a case does not meet an expectation.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Case     string // Case name
	Check    string // Which expectation failed, e.g. "select[children]"
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "case %q: %s\n", e.Case, e.Check)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// checkCase compares a case result against its expectations.
// A nil expect only requires the case to succeed.
func checkCase(cr CaseResult, expect *Expect) []error {
	fail := func(check string, expected, actual any) error {
		return &AssertionError{
			Case:     cr.Name,
			Check:    check,
			Expected: fmt.Sprint(expected),
			Actual:   fmt.Sprint(actual),
		}
	}

	if expect == nil {
		if cr.Error != "" {
			return []error{fail("error", "success", cr.Message)}
		}
		return nil
	}

	if expect.Error != "" || cr.Error != "" {
		if expect.Error != cr.Error {
			actual := cr.Error
			if actual == "" {
				actual = "success"
			} else {
				actual = cr.Message
			}
			return []error{fail("error", orSuccess(expect.Error), actual)}
		}
		return nil
	}

	var errs []error
	if expect.Graph != "" && expect.Graph != cr.Graph {
		errs = append(errs, fail("graph", expect.Graph, cr.Graph))
	}
	if expect.Strategy != "" && expect.Strategy != cr.Strategy {
		errs = append(errs, fail("strategy", expect.Strategy, cr.Strategy))
	}

	lists := []struct {
		name string
		want map[string][]string
		got  func(*plan.Plan) []string
	}{
		{"select", expect.Select, func(p *plan.Plan) []string { return p.Select }},
		{"injected", expect.Injected, func(p *plan.Plan) []string { return p.Injected }},
		{"loads", expect.Loads, (*plan.Plan).LoadNames},
		{"counts", expect.Counts, (*plan.Plan).CountNames},
		{"sums", expect.Sums, (*plan.Plan).SumNames},
	}
	for _, l := range lists {
		for _, path := range sortedPaths(l.want) {
			check := fmt.Sprintf("%s[%s]", l.name, path)
			p, err := planAt(cr.Plan, path)
			if err != nil {
				errs = append(errs, fail(check, l.want[path], err))
				continue
			}
			if got := l.got(p); !equalLists(l.want[path], got) {
				errs = append(errs, fail(check, l.want[path], got))
			}
		}
	}

	windowPaths := make([]string, 0, len(expect.Window))
	for path := range expect.Window {
		windowPaths = append(windowPaths, path)
	}
	sort.Strings(windowPaths)
	for _, path := range windowPaths {
		want := expect.Window[path]
		check := fmt.Sprintf("window[%s]", path)
		p, err := planAt(cr.Plan, path)
		if err != nil {
			errs = append(errs, fail(check, want, err))
			continue
		}
		var got Window
		if p.Window != nil {
			got = Window{Offset: p.Window.Offset, Limit: p.Window.Limit}
		}
		if got != want {
			errs = append(errs, fail(check, want, got))
		}
	}

	for _, frag := range expect.SQLContains {
		if !strings.Contains(cr.SQL, frag) {
			errs = append(errs, fail("sql_contains", frag, cr.SQL))
		}
	}
	return errs
}

// planAt walks dotted load names from root. "" is root itself.
func planAt(root *plan.Plan, path string) (*plan.Plan, error) {
	if root == nil {
		return nil, fmt.Errorf("no plan")
	}
	p := root
	if path == "" {
		return p, nil
	}
	for _, name := range strings.Split(path, ".") {
		next, ok := p.Loads[name]
		if !ok {
			return nil, fmt.Errorf("no load %q at %q", name, path)
		}
		p = next
	}
	return p, nil
}

func sortedPaths(m map[string][]string) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// equalLists treats nil and empty as equal.
func equalLists(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

func orSuccess(code string) string {
	if code == "" {
		return "success"
	}
	return code
}

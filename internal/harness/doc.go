// Package harness runs graph conformance scenarios.
//
// A scenario loads an entity declaration, optionally seeds graph keys and a
// cipher secret, then drives requests through the same resolver, plan
// compiler and SQL renderer the server uses. Each case states what it
// expects: a select list, injected keys, windows, loads, aggregates, SQL
// fragments, or an error code.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: category_tree
//	description: "Children load with the parent key injected"
//	entities: ../entities/shop.cue
//	secret: "7.3"
//	keys:
//	  category_list: "{name,children{name}}"
//	cases:
//	  - name: by key
//	    entity: categories
//	    request: { graph_key: category_list }
//	    expect:
//	      select:   { "": [id, name], children: [id, name, parent_id] }
//	      injected: { children: [parent_id] }
//	      loads:    { "": [children] }
//	      sql_contains: ["ORDER BY categories.id"]
//	  - name: bad relation
//	    entity: categories
//	    request: { graph: "{name,ghosts{id}}" }
//	    expect:
//	      error: UNKNOWN_RELATION
//
// Paths in expect maps are dotted load paths from the root; "" is the root.
// The entities path is relative to the scenario file.
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite key store, an in-memory cache and
// a fixed clock, so rendered SQL is identical across runs and can be
// compared against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/shop.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness

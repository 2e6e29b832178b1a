// Package store provides SQLite-backed durable storage for named graph
// expressions.
//
// A graph key maps a short caller-visible name to a full graph expression,
// so clients can send graph_key=category_list instead of the expression
// itself. Rows live in the graph_sql_keys table:
//
//	id          autoincrement row id
//	key         unique name, compared with BINARY collation
//	string      the graph expression
//	created_at  RFC 3339 UTC timestamp
//	updated_at  RFC 3339 UTC timestamp
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The Postgres flavour of the same store lives in store/pgstore.
package store

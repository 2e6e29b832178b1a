// Package ir provides the literal value types and canonical encoding shared
// by the graph parser, the plan compiler and the SQL renderer.
//
// This package contains no graph or plan types. Every other internal package
// may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types - decimal literals stay strings so that plans
//     hash identically on every platform
//   - Canonical JSON (RFC 8785) is the only encoding used for fingerprints
//   - All JSON tags use snake_case
package ir

// Package testutil provides helpers shared by unit tests:
//   - Miniredis helpers (miniredis.go)
//   - Transaction fixtures and a computed sample bundle (fixtures.go)
//
// Nothing here needs Docker or network access.
package testutil

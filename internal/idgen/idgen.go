// Package idgen mints opaque string ids for LiveWar entities (units,
// mines, energy drops, effects).
package idgen

import "github.com/google/uuid"

// New returns a fresh opaque id.
func New() string {
	return uuid.NewString()
}

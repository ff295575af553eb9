// Package corrid generates per-request correlation IDs used to thread log
// lines for a single CRS control connection.
package corrid

import "github.com/google/uuid"

// New returns a fresh correlation ID.
func New() string {
	return uuid.NewString()
}

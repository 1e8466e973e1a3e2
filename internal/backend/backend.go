// Package backend provides the data sources behind the catalog operations.
package backend

import (
	"context"
	"fmt"

	"github.com/bdubs00/pscale-context-server/internal/catalog"
)

// Backend executes a validated catalog operation.
type Backend interface {
	// Execute runs op with arguments already checked by catalog validation.
	// The result must be JSON-serializable.
	Execute(ctx context.Context, op string, args catalog.Arguments) (any, error)
}

// UnsupportedOperationError is returned for an operation a backend does
// not implement.
type UnsupportedOperationError struct {
	Op string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %q", e.Op)
}

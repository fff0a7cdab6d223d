// closer.go defines the Closer interface.

package types

import (
	"context"
)

// Closer is implemented by resources whose release may block (network
// subscriptions, pipelines), so the caller passes a context bounding it.
type Closer interface {
	Close(context.Context) error
}

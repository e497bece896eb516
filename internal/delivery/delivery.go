// Package delivery holds the process entry points started by cmd.
package delivery

import "context"

// Delivery is a long-running server started once the fx graph is built.
type Delivery interface {
	Serve(ctx context.Context) error
}

package v1

import "context"

// ReadyChecker is implemented by stores (and anything else /readyz should probe).
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

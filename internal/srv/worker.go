package srv

import "context"

// Worker is a long running task of the service. Run returns once ctx is
// done, or earlier with an error.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

package httpserver

import (
	"context"
	"errors"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns.
var ShutdownTimeout = 10 * time.Second

// ShutdownFunc stops one component.
type ShutdownFunc func(ctx context.Context) error

// ShutdownAll runs every step in order under a single ShutdownTimeout budget.
// A failing step does not stop later steps; all failures are joined.
func ShutdownAll(steps ...ShutdownFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, step := range steps {
		if step == nil {
			continue
		}
		if err := step(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package worker defines the worker pool that drains the feed event queue
// into the fan-out dispatcher.
package worker

import (
	"github.com/stylehive/feedcast/pkg/logger"
)

// Option applies a configuration option to the FanoutWorker.
type Option func(*FanoutWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *FanoutWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *FanoutWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

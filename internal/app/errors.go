package service

import "errors"

var (
	// ErrBackpressure indicates the event queue refused a delivery.
	ErrBackpressure = errors.New("event queue full")

	// ErrNotStarted indicates the service has not been started yet.
	ErrNotStarted = errors.New("service not started")

	// ErrEmptyActivityID indicates a delivery without an activity id.
	// Delivery dedupe keys off the id, so an empty one is never accepted.
	ErrEmptyActivityID = errors.New("activity id required")
)

package core

import "context"

// Notifier is an interface to receive notifications about committed changes
// to planner resources. The payload is the JSON representation of the resource.
//
// Notify must not block the caller for long; implementations that talk to
// a broker are expected to publish asynchronously.
type Notifier interface {
	Notify(ctx context.Context, resource string, operation Operation, payload []byte)
}

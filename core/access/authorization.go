/*
Package access provides utilities for access control

The JWT middleware authenticates requesters and stores their user id in the
request context. Handlers then ask Authorize whether the authenticated user may
perform an operation on a resource.
*/
package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/relabs-tech/plantparenthood/core"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

// the predefined context keys
const (
	contextKeyUserID contextKey = "_user_id_"
	contextKeyToken  contextKey = "_token_"
)

// Kind is the kind of resource an operation targets
type Kind string

// all resource kinds subject to access control
const (
	KindSpecies    Kind = "species"
	KindUser       Kind = "user"
	KindUserPlants Kind = "user_plants"
	KindDashboard  Kind = "dashboard"
	KindCareEvents Kind = "care_events" // a user's care-event history
	KindPlant      Kind = "plant"
	KindCareEvent  Kind = "care_event"
)

// Resource describes the target of an operation.
//
// UserID is the user the resource belongs to or is created on behalf of: the
// target user for user_plants, dashboard and care_events, the requested owner
// when creating a plant, and the author of a care event. Owners is the owner set
// of the plant involved, if any.
type Resource struct {
	Kind   Kind
	UserID uuid.UUID
	Owners []uuid.UUID
}

// Decision is the outcome of an authorization check
type Decision bool

// the two possible decisions
const (
	Allow     Decision = true
	Forbidden Decision = false
)

// Err returns nil for Allow and core.ErrForbidden otherwise
func (d Decision) Err() error {
	if d == Allow {
		return nil
	}
	return core.ErrForbidden
}

// Authorize decides whether caller may perform operation on resource. It has no
// side effects.
func Authorize(caller uuid.UUID, operation core.Operation, resource Resource) Decision {
	switch resource.Kind {
	case KindSpecies, KindUser:
		// reference data and public profiles
		return Allow

	case KindUserPlants, KindDashboard, KindCareEvents:
		return isSelf(caller, resource.UserID)

	case KindPlant:
		if operation == core.OperationCreate {
			return isSelf(caller, resource.UserID)
		}
		return isOwner(caller, resource.Owners)

	case KindCareEvent:
		if operation == core.OperationCreate {
			return isSelf(caller, resource.UserID)
		}
		if isSelf(caller, resource.UserID) {
			return Allow
		}
		return isOwner(caller, resource.Owners)
	}
	return Forbidden
}

func isSelf(caller, target uuid.UUID) Decision {
	return Decision(caller != uuid.Nil && caller == target)
}

func isOwner(caller uuid.UUID, owners []uuid.UUID) Decision {
	if caller == uuid.Nil {
		return Forbidden
	}
	for _, owner := range owners {
		if owner == caller {
			return Allow
		}
	}
	return Forbidden
}

// ContextWithUserID returns a new context with the authenticated user id added to it
func ContextWithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKeyUserID, userID)
}

// UserIDFromContext retrieves the authenticated user id from the context
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKeyUserID).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ContextWithToken returns a new context with the bearer token the requester was
// authenticated with
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyToken, token)
}

// TokenFromContext retrieves the bearer token from the context
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextKeyToken).(string)
	return token
}

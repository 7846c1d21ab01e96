/*
Package planner implements the domain operations of the plant parenthood planner.

All operations are request scoped and take a context. Every multi step write runs
in a single database transaction, partial writes are never visible to concurrent
readers. Uniqueness is enforced by the database, a duplicate key at commit time
is translated into the matching conflict error.

Access control is not part of this package. Callers authorize first and then
call the planner.
*/
package planner

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/model"
)

// Planner gives access to users, species, plants and care events
type Planner struct {
	db       *gorm.DB
	notifier core.Notifier

	// Now is the clock for server assigned timestamps
	Now func() time.Time
}

// Builder is a builder helper for the Planner
type Builder struct {
	// DB is the gorm database. This is mandatory.
	DB *gorm.DB
	// Notifier receives notifications for committed plant and care event changes. This is optional.
	Notifier core.Notifier
}

// New realizes the planner. It does not migrate the database, call Migrate for that.
func New(pb *Builder) *Planner {
	if pb.DB == nil {
		panic("DB is missing")
	}
	if err := model.SetupJoinTables(pb.DB); err != nil {
		panic(err)
	}
	return &Planner{
		db:       pb.DB,
		notifier: pb.Notifier,
		Now:      time.Now,
	}
}

// Migrate creates or updates all tables
func (p *Planner) Migrate(ctx context.Context) error {
	return model.Migrate(p.db.WithContext(ctx))
}

func (p *Planner) now() time.Time {
	return p.Now().UTC()
}

// notify sends a notification for a committed change. Notifications are best effort.
func (p *Planner) notify(ctx context.Context, resource string, operation core.Operation, object interface{}) {
	if p.notifier == nil {
		return
	}
	payload, err := json.Marshal(object)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("cannot marshal notification for", resource)
		return
	}
	p.notifier.Notify(ctx, resource, operation, payload)
}

// isUniqueViolation recognizes duplicate keys from translated gorm dialects and from lib/pq
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// notFound turns gorm.ErrRecordNotFound into the given typed error
func notFound(err error, typed *core.Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return typed
	}
	return core.Internal(err)
}

// text trims value and checks that it is present and not longer than max characters
func text(field, value string, max int, required bool) (string, error) {
	value = strings.TrimSpace(value)
	if required && value == "" {
		return "", core.Validation("%s is required", field)
	}
	if utf8.RuneCountInString(value) > max {
		return "", core.Validation("%s must be at most %d characters", field, max)
	}
	return value, nil
}

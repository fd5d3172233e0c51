package service

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/strata/internal/domain"
	"github.com/alexanderramin/strata/internal/repository"
	"github.com/google/uuid"
)

// SystemActor stamps writes made without an actor in the context.
const SystemActor = "system"

type actorKey struct{}

// WithActor returns a context whose writes are stamped with user.
func WithActor(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

func actorFrom(ctx context.Context) string {
	if user, ok := ctx.Value(actorKey{}).(string); ok && user != "" {
		return user
	}
	return SystemActor
}

// IDFunc produces identifiers for new rows.
type IDFunc func() string

// NewUUID is the default IDFunc.
func NewUUID() string { return uuid.New().String() }

func idFuncOrDefault(fn IDFunc) IDFunc {
	if fn == nil {
		return NewUUID
	}
	return fn
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// notFound turns a repository miss into a typed NOT_FOUND error.
func notFound(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFound(entity, id)
	}
	return err
}

func nodeIDs[T domain.Node](nodes []T) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.NodeID()
	}
	return ids
}

func taskIDs(tasks []*domain.Task) []string {
	return nodeIDs(tasks)
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || domain.IsCode(err, domain.CodeNotFound)
}

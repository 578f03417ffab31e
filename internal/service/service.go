// Package service holds the business rules of the marketplace. Each
// service depends on narrow store interfaces implemented by the
// repository package and reports failures as *apperror.AppError.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/linkmarket/internal/apperror"
	"github.com/iliyamo/linkmarket/internal/model"
	"github.com/iliyamo/linkmarket/internal/repository"
)

// UserLookup resolves order and message owners.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Clock returns the current time. Tests replace it to pin timestamps.
type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// storeErr converts a repository error into an AppError. ErrNotFound
// becomes a 404 for resource, anything unexpected is logged and
// wrapped as internal.
func storeErr(log *zap.Logger, resource, op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperror.NotFound(resource)
	case errors.Is(err, repository.ErrEmailExists):
		return apperror.Conflict("email already registered")
	case errors.Is(err, repository.ErrConflict):
		return apperror.Conflict(resource + " already exists")
	}
	log.Error("store failure", zap.String("resource", resource), zap.String("op", op), zap.Error(err))
	return apperror.Internal("failed to "+op+" "+resource, err)
}

// bestEffort logs a failed notification. Delivery failures never
// change the outcome of the operation that triggered them.
func bestEffort(log *zap.Logger, kind, id string, err error) {
	if err != nil {
		log.Warn("notification failed", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
	}
}

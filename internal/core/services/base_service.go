package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
	"github.com/SscSPs/curtain_escrow_app/internal/platform/txcontext"
)

// BaseService provides common functionality for all services
type BaseService struct {
	Clock     func() time.Time
	Publisher portssvc.EventPublisher
}

// Option configures the shared parts of a service.
type Option func(*BaseService)

// WithClock overrides the time source. Tests use it to move past the dispute window.
func WithClock(clock func() time.Time) Option {
	return func(b *BaseService) {
		b.Clock = clock
	}
}

// WithPublisher sets where domain events are sent after commit.
func WithPublisher(publisher portssvc.EventPublisher) Option {
	return func(b *BaseService) {
		b.Publisher = publisher
	}
}

func newBaseService(options ...Option) BaseService {
	b := BaseService{Clock: time.Now}
	for _, option := range options {
		option(&b)
	}
	return b
}

// now returns the current time in UTC, truncated to what PostgreSQL stores.
func (s *BaseService) now() time.Time {
	return s.Clock().UTC().Truncate(time.Microsecond)
}

// publish sends event once the surrounding unit of work commits.
func (s *BaseService) publish(ctx context.Context, event domain.Event) {
	if s.Publisher == nil {
		return
	}
	txcontext.AfterCommit(ctx, func(ctx context.Context) {
		s.Publisher.Publish(ctx, event)
	})
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	logger := s.GetLogger(ctx)
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	logger.Error(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Debug(msg, keyvals...)
}

// canActAsSeller reports whether actor may act as the owner of sellerID's resources.
func canActAsSeller(actor domain.Actor, sellerID string) bool {
	return actor.IsAdmin() || (actor.Role == domain.RoleSeller && actor.ID == sellerID)
}

// canReadAccount reports whether actor may see accountID.
func canReadAccount(actor domain.Actor, accountID string) bool {
	return actor.IsAdmin() || actor.IsSystem() || actor.ID == accountID
}

// Package service applies request validation, pricing defaults, caching and
// metrics around the store's ledger operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"pharmapos/backend/internal/cache"
	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/logger"
	"pharmapos/backend/internal/metrics"
	"pharmapos/backend/internal/store"
)

var (
	ErrForbidden          = errors.New("forbidden role")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Logger  *zap.Logger
	Cache   cache.DashboardCache
	Metrics *metrics.Metrics

	CacheTTL                time.Duration
	RequirePurchaseExpiry   bool
	UpgradePasswordHashes   bool
	DefaultReorderThreshold int
	ExpiryHorizonDays       int

	Now func() time.Time
}

type Service struct {
	repo     store.Repository
	log      *zap.Logger
	cache    cache.DashboardCache
	metrics  *metrics.Metrics
	validate *validator.Validate

	cacheTTL          time.Duration
	requireExpiry     bool
	upgradeHashes     bool
	reorderThreshold  int
	expiryHorizonDays int
	now               func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopDashboardCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.DefaultReorderThreshold <= 0 {
		opts.DefaultReorderThreshold = 10
	}
	if opts.ExpiryHorizonDays <= 0 {
		opts.ExpiryHorizonDays = 90
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:              repo,
		log:               opts.Logger.Named("service"),
		cache:             opts.Cache,
		metrics:           opts.Metrics,
		validate:          newValidator(),
		cacheTTL:          opts.CacheTTL,
		requireExpiry:     opts.RequirePurchaseExpiry,
		upgradeHashes:     opts.UpgradePasswordHashes,
		reorderThreshold:  opts.DefaultReorderThreshold,
		expiryHorizonDays: opts.ExpiryHorizonDays,
		now:               opts.Now,
	}
}

// newValidator reports json field names in validation errors.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", store.ErrValidation, strings.Join(fields, ", "))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, args...))
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) logger(ctx context.Context) *zap.Logger {
	if id := logger.RequestID(ctx); id != "" {
		return s.log.With(zap.String("request_id", id))
	}
	return s.log
}

// invalidate drops cached dashboards after a ledger mutation. Cache failures
// are logged only.
func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger(ctx).Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}

func (s *Service) today() time.Time {
	return domain.DateOnly(s.now())
}

func parseDate(field string, value string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, invalid("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

// emptyOnConnection keeps read results renderable: a connection failure
// yields an empty slice together with the error.
func emptyOnConnection[T any](rows []T, err error) ([]T, error) {
	if err != nil {
		if errors.Is(err, store.ErrConnection) {
			return []T{}, err
		}
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// ErrorCode maps an error to the code used in API error bodies.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrConnection):
		return "CONNECTION_FAILURE"
	case errors.Is(err, store.ErrDuplicateBarcode):
		return "DUPLICATE_BARCODE"
	case errors.Is(err, store.ErrDuplicateUsername):
		return "DUPLICATE_USERNAME"
	case errors.Is(err, store.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, store.ErrReferentialConflict):
		return "REFERENTIAL_CONFLICT"
	case errors.Is(err, store.ErrValidation):
		return "VALIDATION_FAILURE"
	case errors.Is(err, store.ErrProtectedAccount):
		return "PROTECTED_ACCOUNT"
	case errors.Is(err, store.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidCredentials):
		return "INVALID_CREDENTIALS"
	default:
		return "INTERNAL"
	}
}

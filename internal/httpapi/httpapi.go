// Package httpapi serves the pharmacy ledger over JSON/HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/logger"
	"pharmapos/backend/internal/metrics"
	"pharmapos/backend/internal/service"
	"pharmapos/backend/internal/store"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

type Config struct {
	AllowedOrigin string
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

type API struct {
	service      *service.Service
	auth         *AuthManager
	log          *zap.Logger
	metrics      *metrics.Metrics
	cors         *cors.Cors
	loginLimiter *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, cfg Config) *API {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	origins := []string{"*"}
	if cfg.AllowedOrigin != "" {
		origins = strings.Split(cfg.AllowedOrigin, ",")
	}

	return &API{
		service: svc,
		auth:    auth,
		log:     cfg.Logger.Named("http"),
		metrics: cfg.Metrics,
		cors: cors.New(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}),
		loginLimiter: newAttemptLimiter(5, time.Minute),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.requestID)
	r.Use(a.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(a.cors.Handler)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	r.Get("/healthz", a.handleHealth)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)

			r.Route("/medicines", func(r chi.Router) {
				r.Get("/", a.handleListMedicines)
				r.Post("/", a.handleCreateMedicine)
				r.Get("/lookup", a.handleLookupMedicine)
				r.Get("/{id}", a.handleGetMedicine)
				r.Put("/{id}", a.handleUpdateMedicine)
				r.With(requireRole(domain.RoleAdmin)).Delete("/{id}", a.handleDeleteMedicine)
				r.Get("/{id}/batches", a.handleListBatches)
				r.With(requireRole(domain.RoleAdmin)).Post("/{id}/clear-stock", a.handleClearStock)
			})

			r.Route("/sales", func(r chi.Router) {
				r.Post("/", a.handleCreateSale)
				r.Get("/{id}", a.handleGetSale)
				r.Get("/{id}/receipt", a.handleReceipt)
			})

			r.Route("/purchases", func(r chi.Router) {
				r.With(requireRole(domain.RoleAdmin)).Post("/", a.handleCreatePurchase)
				r.Get("/{id}", a.handleGetPurchase)
			})

			r.Route("/suppliers", func(r chi.Router) {
				r.Get("/", a.handleListSuppliers)
				r.Post("/", a.handleCreateSupplier)
				r.Get("/{id}", a.handleGetSupplier)
				r.Put("/{id}", a.handleUpdateSupplier)
				r.With(requireRole(domain.RoleAdmin)).Delete("/{id}", a.handleDeleteSupplier)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", a.handleListCustomers)
				r.Post("/", a.handleCreateCustomer)
				r.Put("/{id}", a.handleUpdateCustomer)
				r.Delete("/{id}", a.handleDeleteCustomer)
			})

			r.Route("/users", func(r chi.Router) {
				r.Put("/{id}/password", a.handleChangePassword)
				r.Group(func(r chi.Router) {
					r.Use(requireRole(domain.RoleAdmin))
					r.Get("/", a.handleListUsers)
					r.Post("/", a.handleCreateUser)
					r.Delete("/{id}", a.handleDeleteUser)
				})
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/dashboard", a.handleDashboard)
				r.Get("/low-stock", a.handleLowStock)
				r.Get("/expiring", a.handleExpiring)
				r.Get("/sales", a.handleSalesReport)
				r.Get("/purchases", a.handlePurchasesReport)
				r.Get("/financial", a.handleFinancial)
				r.Get("/reconcile", a.handleReconcile)
			})
		})
	})

	return r
}

// requestID takes the caller's X-Request-ID or issues a new one and puts a
// request-scoped logger in the context.
func (a *API) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx, _ := logger.WithRequestID(r.Context(), a.log, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(startedAt)
		a.metrics.ObserveRequest(r.Method, route, status, elapsed)
		logger.FromContext(r.Context()).Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", elapsed),
		)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token", Code: "UNAUTHORIZED"})
			return
		}
		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), Code: "UNAUTHORIZED"})
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.String("user", actor.Username)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok || !isRoleAllowed(actor.Role, roles) {
				writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden role", Code: "FORBIDDEN"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Hint  string `json:"hint,omitempty"`
}

func statusFor(code string) int {
	switch code {
	case "CONNECTION_FAILURE":
		return http.StatusServiceUnavailable
	case "DUPLICATE_BARCODE", "DUPLICATE_USERNAME", "INSUFFICIENT_STOCK", "REFERENTIAL_CONFLICT":
		return http.StatusConflict
	case "VALIDATION_FAILURE":
		return http.StatusBadRequest
	case "PROTECTED_ACCOUNT", "FORBIDDEN":
		return http.StatusForbidden
	case "NOT_FOUND":
		return http.StatusNotFound
	case "INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to its status and code. 5xx bodies carry a generic
// message; the cause goes to the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := service.ErrorCode(err)
	status := statusFor(code)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		logger.FromContext(r.Context()).Error("request failed", zap.Error(err))
		msg = "internal server error"
	case status == http.StatusServiceUnavailable:
		logger.FromContext(r.Context()).Warn("store unavailable", zap.Error(err))
		msg = store.ErrConnection.Error()
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body too large", store.ErrValidation)
		}
		return fmt.Errorf("%w: malformed JSON: %v", store.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id", store.ErrValidation)
	}
	return id, nil
}

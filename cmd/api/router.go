package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	c "connectrpc.com/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	billinghandler "github.com/FACorreiaa/billing-intake/internal/domain/billing/handler"
	importhandler "github.com/FACorreiaa/billing-intake/internal/domain/import/handler"
	"github.com/FACorreiaa/billing-intake/pkg/interceptors"
	"github.com/FACorreiaa/billing-intake/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; authentication interceptor will reject requests")
	}

	// Stateless helpers that never touch user data
	publicProcedures := []string{
		importhandler.ImportServiceSniffFormatProcedure,
		importhandler.ImportServiceExportItemsProcedure,
	}

	tracer := otel.GetTracerProvider().Tracer("billing-intake/api")

	chain := []connect.Interceptor{
		interceptors.NewRequestIDInterceptor("X-Request-ID"),
		interceptors.NewTracingInterceptor(tracer),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		chain = append(chain, interceptors.NewRateLimitInterceptor(limiter))
	}
	chain = append(chain,
		interceptors.NewRecoveryInterceptor(deps.Logger),
		interceptors.NewLoggingInterceptor(deps.Logger),
		interceptors.NewAuthInterceptor(interceptors.AuthConfig{
			Secret:   jwtSecret,
			Audience: deps.Config.Auth.Audience,
			Issuer:   deps.Config.Auth.Issuer,
			Public:   publicProcedures,
		}),
		observability.NewMetricsInterceptor(),
	)

	opts := connect.WithHandlerOptions(
		connect.WithInterceptors(chain...),
		connect.WithReadMaxBytes(int(deps.Config.Server.MaxBodyBytes)),
	)

	// Register Connect RPC routes
	registerConnectRoutes(mux, deps, opts)

	// Register health and metrics routes
	registerUtilityRoutes(mux, deps)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods(),
		AllowedHeaders:   append(c.AllowedHeaders(), "Authorization", "X-Request-ID"),
		ExposedHeaders:   append(c.ExposedHeaders(), "X-Request-ID", billinghandler.ModelIDHeader),
		AllowCredentials: true,
		MaxAge:           7200, // Cache preflights for 2 hours
	})

	return corsHandler.Handler(mux)
}

// registerConnectRoutes registers all Connect RPC services
func registerConnectRoutes(mux *http.ServeMux, deps *Dependencies, opts connect.HandlerOption) {
	importPath, importHandler := importhandler.NewImportServiceHandler(deps.ImportHandler, opts)
	mux.Handle(importPath, wrapRPCRoute(importHandler, deps.Config.Server.MaxBodyBytes))
	deps.Logger.Info("registered Connect RPC service", "path", importPath)

	billingPath, billingHandler := billinghandler.NewBillingServiceHandler(deps.BillingHandler, opts)
	mux.Handle(billingPath, wrapRPCRoute(billingHandler, deps.Config.Server.MaxBodyBytes))
	deps.Logger.Info("registered Connect RPC service", "path", billingPath)

	deps.Logger.Info("Connect RPC routes configured")
}

func wrapRPCRoute(next http.Handler, maxBodyBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		if r.Body != nil && maxBodyBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		next.ServeHTTP(w, r)
	})
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, writeErr := w.Write([]byte("database unhealthy")); writeErr != nil {
				deps.Logger.Error("failed to write health response", slog.Any("error", writeErr))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			deps.Logger.Error("failed to write health response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/health")

	// Extended health with details on dependencies
	mux.HandleFunc("/health/details", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		result, healthy := healthDetails(deps, r)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health details", "path", "/health/details")

	// Readiness check endpoint
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}

type componentStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// healthDetails fails only on the database; missing optional clients warn.
func healthDetails(deps *Dependencies, r *http.Request) (map[string]componentStatus, bool) {
	result := map[string]componentStatus{
		"db":     {Status: "ok"},
		"stripe": {Status: "ok"},
		"ocr":    {Status: "ok"},
		"ready":  {Status: "ok"},
	}

	healthy := true
	if err := deps.DB.Health(r.Context()); err != nil {
		result["db"] = componentStatus{Status: "fail", Detail: err.Error()}
		result["ready"] = componentStatus{Status: "fail", Detail: "db unavailable"}
		healthy = false
	}
	if deps.Stripe == nil {
		result["stripe"] = componentStatus{Status: "warn", Detail: "STRIPE_SECRET_KEY missing"}
	}
	if deps.OCR == nil {
		result["ocr"] = componentStatus{Status: "warn", Detail: "OCR_ENDPOINT missing; image uploads disabled"}
	}

	return result, healthy
}

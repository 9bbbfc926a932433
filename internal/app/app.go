package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/rswag/pod-backend/internal/catalog"
	"github.com/rswag/pod-backend/internal/domain/fulfillment"
	"github.com/rswag/pod-backend/internal/domain/order"
	"github.com/rswag/pod-backend/internal/domain/revenue"
	"github.com/rswag/pod-backend/internal/flow"
	"github.com/rswag/pod-backend/internal/handler"
	"github.com/rswag/pod-backend/internal/mollie"
	"github.com/rswag/pod-backend/internal/pod/printful"
	"github.com/rswag/pod-backend/internal/pod/prodigi"
	"github.com/rswag/pod-backend/internal/postgres"
	"github.com/rswag/pod-backend/pkg/health"
	"github.com/rswag/pod-backend/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	cartRepo := postgres.NewCartRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// External clients.
	payments := mollie.NewClient(cfg.Mollie.APIKey)
	printfulClient := printful.NewClient(cfg.Printful.Token, cfg.Printful.Sandbox)
	prodigiClient := prodigi.NewClient(cfg.Prodigi.APIKey, cfg.Prodigi.Sandbox)
	ledger := flow.NewClient(cfg.Flow.URL, cfg.Flow.FlowID, cfg.Flow.FunnelID)
	if !ledger.Enabled() {
		lg.Info("Revenue routing disabled: flow service not configured")
	}

	// Domain services.
	split, err := cfg.Flow.Split()
	if err != nil {
		return err
	}
	designs := catalog.NewService(cfg.DesignsDir, cfg.ImageBaseURL)
	orderSvc := order.NewService(cartRepo, customerRepo, orderRepo)
	dispatcher := fulfillment.NewDispatcher(designs, orderRepo, printfulClient, prodigiClient)
	router := revenue.NewRouter(ledger, split)

	// HTTP handlers.
	h := handler.New(
		handler.Config{
			BaseURL:       cfg.BaseURL,
			StorefrontURL: cfg.StorefrontURL,
			APIKeyPepper:  []byte(cfg.APIKeyPepper),
		},
		cartRepo,
		orderRepo,
		orderSvc,
		dispatcher,
		router,
		payments,
		designs,
		ledger,
		prodigiClient,
		apikeyRepo,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", h.Routes())

	instrumented := otelhttp.NewHandler(mux, "pod-backend",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(instrumented,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

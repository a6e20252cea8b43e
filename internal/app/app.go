package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/arena-booking/internal/domain/booking"
	"github.com/xenking/arena-booking/internal/handler"
	"github.com/xenking/arena-booking/internal/payment"
	"github.com/xenking/arena-booking/internal/repository"
	"github.com/xenking/arena-booking/pkg/health"
	"github.com/xenking/arena-booking/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	probes := health.New(lg.Named("health"))
	probes.AddReadiness("postgres", health.Options{Timeout: 5 * time.Second}, health.Ping(pool))
	probes.AddLiveness("goroutines", health.Options{}, health.GoroutineLimit(10000))
	probes.Start(ctx, 10*time.Second)
	probes.SetReady(true)

	venues := repository.NewVenueRepository(pool)
	rules := repository.NewDiscountRuleRepository(pool)
	bookings := repository.NewBookingRepository(pool)
	apikeys := repository.NewAPIKeyRepository(pool)

	var charger booking.Charger = payment.Disabled{}
	if cfg.Stripe.SecretKey != "" {
		charger = payment.NewStripe(cfg.Stripe.SecretKey)
	} else {
		lg.Warn("Stripe secret key not set, bookings will not be charged")
	}

	bookingCfg, err := cfg.Pricing.BookingConfig()
	if err != nil {
		return err
	}
	bookingSvc, err := booking.NewService(venues, rules, bookings, charger, bookingCfg,
		m.TracerProvider(), m.MeterProvider(),
	)
	if err != nil {
		return errors.Wrap(err, "create booking service")
	}

	router := handler.NewRouter(
		handler.NewHandler(venues, rules, bookingSvc),
		handler.NewSecurity(apikeys, []byte(cfg.APIKeyPepper)),
		probes,
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Instrument("arena-api", m),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		probes.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		probes.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/w-lukawski/gabinet/internal/authz"
	"github.com/w-lukawski/gabinet/internal/booking"
	"github.com/w-lukawski/gabinet/internal/completion"
	"github.com/w-lukawski/gabinet/internal/consumer"
	"github.com/w-lukawski/gabinet/internal/directory"
	"github.com/w-lukawski/gabinet/internal/handlers"
	"github.com/w-lukawski/gabinet/internal/inbox"
	"github.com/w-lukawski/gabinet/internal/outbox"
	"github.com/w-lukawski/gabinet/internal/storage"
	"github.com/w-lukawski/gabinet/libs/config"
	"github.com/w-lukawski/gabinet/libs/db"
	"github.com/w-lukawski/gabinet/libs/httpx"
	"github.com/w-lukawski/gabinet/libs/kafkax"
	otelx "github.com/w-lukawski/gabinet/libs/otel"
	"github.com/w-lukawski/gabinet/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "gabinet-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	apptRepo := storage.NewAppointmentRepository(pool)
	scheduleRepo := storage.NewScheduleRepository(pool)
	calendarRepo := storage.NewCalendarRepository(pool)
	directoryRepo := storage.NewDirectoryRepository(pool)
	packageRepo := storage.NewPackageRepository(pool)
	loyaltyRepo := storage.NewLoyaltyRepository(pool)
	paymentRepo := storage.NewPaymentRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	// A remote directory service takes over treatment/qualification lookups
	// when its generated client is built in; otherwise the local tables serve.
	var dirProvider directory.Provider = directoryRepo
	if remote, err := directory.NewRemoteProvider(config.String("DIRECTORY_GRPC_ADDR", "")); err != nil {
		logger.Error("directory provider init failed; using local tables", "err", err)
	} else if remote != nil {
		dirProvider = remote
	}

	var intents completion.IntentCreator
	if sc := completion.NewStripeIntentCreator(config.String("STRIPE_SECRET_KEY", "")); sc != nil {
		intents = sc
		logger.Info("stripe payment intents enabled")
	}
	completer := completion.NewProcessor(
		directoryRepo, packageRepo, loyaltyRepo, paymentRepo, intents,
		config.String("PAYMENT_CURRENCY", "pln"), logger,
	)

	bookingSvc := booking.NewService(apptRepo, scheduleRepo, calendarRepo, dirProvider, outboxRepo, completer,
		config.Int("RECURRENCE_MAX_OCCURRENCES", 0), logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		activityConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   config.String("KAFKA_ACTIVITY_TOPIC", consumer.TopicActivityScheduled),
		}, consumer.NewActivityHandler(calendarRepo, logger))
		go activityConsumer.Run(ctx)
	}

	authzProvider := authz.NewRoleProvider()
	adminKey, err := authz.NewAdminKey(config.String("ADMIN_API_KEY", ""))
	if err != nil {
		logger.Error("admin key setup failed", "err", err)
		panic(err)
	}

	apptHandler := handlers.NewAppointmentHandler(bookingSvc, authzProvider, logger)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, directoryRepo, authzProvider, adminKey, logger)
	billingHandler := handlers.NewBillingHandler(packageRepo, loyaltyRepo, paymentRepo, authzProvider, logger)

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var publicLimit httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		publicLimit = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("public rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		publicLimit = rl.Middleware()
		logger.Info("public rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	mux.HandleFunc("/api/v1/appointments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			apptHandler.List(w, r)
			return
		}
		apptHandler.Create(w, r)
	})
	mux.HandleFunc("/api/v1/appointments/update", apptHandler.Update)
	mux.HandleFunc("/api/v1/appointments/status", apptHandler.UpdateStatus)
	mux.HandleFunc("/api/v1/appointments/cancel", apptHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/cancel-series", apptHandler.CancelSeries)
	mux.Handle("/api/v1/public/slots", publicLimit(http.HandlerFunc(apptHandler.Slots)))
	mux.Handle("/api/v1/public/conflict", publicLimit(http.HandlerFunc(apptHandler.Conflict)))

	mux.HandleFunc("/api/v1/schedule/hours", scheduleHandler.Hours)
	mux.HandleFunc("/api/v1/schedule/overrides", scheduleHandler.Overrides)
	mux.HandleFunc("/api/v1/schedule/leaves", scheduleHandler.Leaves)
	mux.HandleFunc("/api/v1/schedule/leaves/approve", scheduleHandler.ApproveLeave)
	mux.HandleFunc("/api/v1/treatments", scheduleHandler.Treatments)
	mux.HandleFunc("/api/v1/employees", scheduleHandler.Employees)

	mux.HandleFunc("/api/v1/packages", billingHandler.Packages)
	mux.HandleFunc("/api/v1/loyalty", billingHandler.Loyalty)
	mux.HandleFunc("/api/v1/payments", billingHandler.Payments)
	mux.HandleFunc("/api/v1/payments/mark-paid", billingHandler.MarkPaymentPaid)

	bodyLimit := int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))
	middlewares := []httpx.Middleware{
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,X-Org-Id,X-User-Id,X-Role")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
	}
	if bearer := authz.NewBearerResolver(config.String("AUTH_JWT_SECRET", ""), config.String("AUTH_JWKS_URL", "")); bearer != nil {
		middlewares = append(middlewares, bearer.Middleware())
		logger.Info("bearer identity resolution enabled")
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "gabinet")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"offlinejudge/internal/common/cache"
	commonmw "offlinejudge/internal/common/http/middleware"
	"offlinejudge/internal/common/mq"
	"offlinejudge/internal/common/storage"
	"offlinejudge/internal/judge/comparator"
	"offlinejudge/internal/judge/controller"
	"offlinejudge/internal/judge/problemstore"
	"offlinejudge/internal/judge/ratelimit"
	"offlinejudge/internal/judge/repository"
	"offlinejudge/internal/judge/sandbox"
	"offlinejudge/internal/judge/sandbox/config"
	"offlinejudge/internal/judge/sandbox/engine"
	"offlinejudge/internal/judge/sandbox/observer"
	"offlinejudge/internal/judge/service"
	"offlinejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envFile := flag.String("env", ".env", "Optional dotenv file with JUDGE_* overrides")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	problemSrc, err := buildProblemSource(appCfg.Problems)
	if err != nil {
		return fmt.Errorf("init problem source: %w", err)
	}
	store, err := problemstore.Open(ctx, problemSrc)
	if err != nil {
		return fmt.Errorf("load problem database: %w", err)
	}
	go problemstore.Watch(ctx, store, problemSrc, appCfg.Problems.ReloadInterval)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	worker, err := buildWorker(ctx, appCfg, registry)
	if err != nil {
		return err
	}

	svcCfg := service.Config{
		Runner:        worker,
		Problems:      store,
		Metrics:       service.NewMetrics(registry),
		PoolSize:      appCfg.Worker.PoolSize,
		QueueWait:     appCfg.Worker.QueueWait,
		RunTimeout:    appCfg.Worker.Timeout,
		StatusTimeout: appCfg.Status.Timeout,
		MaxCodeBytes:  appCfg.Judge.MaxCodeBytes,
	}

	var redisCache *cache.RedisCache
	if appCfg.Redis.Addr != "" {
		redisCache, err = cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis: %w", err)
		}
		defer func() {
			_ = redisCache.Close()
		}()
	}

	var limiter commonmw.RateLimiter
	if appCfg.RateLimit.Enabled() {
		limiter = ratelimit.NewLimiter(redisCache, appCfg.RateLimit.Window, appCfg.RateLimit.Timeout)
	}

	var mqClient *mq.KafkaQueue
	if appCfg.AsyncEnabled() {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka.KafkaConfig)
		if err != nil {
			return fmt.Errorf("init kafka: %w", err)
		}
		defer func() {
			_ = mqClient.Close()
		}()

		svcCfg.Runs = repository.NewRunRepository(redisCache, appCfg.Status.TTL)
		svcCfg.Publisher = repository.NewMQRunPublisher(mqClient, appCfg.Kafka.Topic)
		svcCfg.Queue = mqClient
		svcCfg.PoolRetry = service.PoolRetryPolicy{
			Topic:       appCfg.Kafka.RetryTopic,
			DeadLetter:  appCfg.Kafka.DeadLetter,
			MaxAttempts: appCfg.Kafka.PoolRetryMax,
			BaseDelay:   appCfg.Kafka.PoolRetryBase,
			MaxDelay:    appCfg.Kafka.PoolRetryMaxD,
		}
	}

	judgeSvc, err := service.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("init judge service: %w", err)
	}

	if mqClient != nil {
		if err := startConsumer(ctx, mqClient, appCfg, judgeSvc); err != nil {
			return err
		}
		defer func() {
			_ = mqClient.Stop()
		}()
	}

	judgeController := controller.NewJudgeController(judgeSvc, store, appCfg.Stream)
	httpServer := buildHTTPServer(appCfg, judgeController, registry, limiter)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Int("questions", store.Snapshot().Len()),
			zap.Bool("async", appCfg.AsyncEnabled()),
		)
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	return nil
}

func buildProblemSource(cfg ProblemsConfig) (problemstore.Source, error) {
	if !cfg.MinIO.Enabled() {
		return problemstore.FileSource{Path: cfg.Path}, nil
	}
	objStorage, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		return nil, err
	}
	return problemstore.ObjectSource{
		Storage: objStorage,
		Bucket:  cfg.MinIO.Bucket,
		Key:     cfg.MinIO.ObjectKey,
		SHA256:  cfg.SHA256,
		Timeout: cfg.Timeout,
	}, nil
}

func buildWorker(ctx context.Context, appCfg *AppConfig, registry *prometheus.Registry) (*sandbox.Worker, error) {
	localRepo := config.NewLocalRepository(appCfg.Language.Languages, appCfg.Language.Profiles)
	lang, prof, err := localRepo.RunTarget(ctx, appCfg.Judge.LanguageID)
	if err != nil {
		return nil, fmt.Errorf("resolve language %s: %w", appCfg.Judge.LanguageID, err)
	}
	eng, err := engine.NewEngine(appCfg.Sandbox.toEngineConfig(), localRepo)
	if err != nil {
		return nil, fmt.Errorf("init sandbox engine: %w", err)
	}
	loader, err := sandbox.NewLoader(eng, lang, prof, appCfg.Judge.toLoaderConfig())
	if err != nil {
		return nil, fmt.Errorf("init loader: %w", err)
	}
	logger.Info(ctx, "sandbox ready",
		zap.String("language", lang.ID),
		zap.String("profile", prof.Name()),
		zap.Duration("case_timeout", loader.CaseTimeout()),
		zap.Bool("helper", appCfg.Sandbox.HelperPath != ""),
	)
	return sandbox.NewWorker(loader, comparator.New(appCfg.Judge.FloatTolerance), observer.NewPrometheus(registry)), nil
}

func startConsumer(ctx context.Context, mqClient *mq.KafkaQueue, appCfg *AppConfig, judgeSvc *service.Service) error {
	opts := &mq.SubscribeOptions{
		ConsumerGroup:   appCfg.Kafka.ConsumerGroup,
		Concurrency:     appCfg.Kafka.Concurrency,
		MaxRetries:      appCfg.Kafka.MaxRetries,
		RetryDelay:      appCfg.Kafka.RetryDelay,
		DeadLetterTopic: appCfg.Kafka.DeadLetter,
		MessageTTL:      appCfg.Kafka.MessageTTL,
		Limiter:         mq.NewTokenLimiter(appCfg.Worker.PoolSize),
	}
	topics := []string{appCfg.Kafka.Topic}
	if appCfg.Kafka.RetryTopic != appCfg.Kafka.Topic {
		topics = append(topics, appCfg.Kafka.RetryTopic)
	}
	for _, topic := range topics {
		if err := mqClient.Subscribe(ctx, topic, judgeSvc.HandleMessage, opts); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	if err := mqClient.Start(); err != nil {
		return fmt.Errorf("start kafka consumer: %w", err)
	}
	logger.Info(ctx, "run consumer started", zap.Strings("topics", topics), zap.String("group", opts.ConsumerGroup))
	return nil
}

func buildHTTPServer(appCfg *AppConfig, h *controller.JudgeController, registry *prometheus.Registry, limiter commonmw.RateLimiter) *http.Server {
	cfg := appCfg.Server
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger("/healthz", cfg.MetricsPath))
	router.Use(commonmw.CORSMiddleware(cfg.CORS))

	router.GET("/healthz", h.Health)
	router.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})))

	limited := func(route string) gin.HandlerFunc {
		return commonmw.RateLimitMiddleware(limiter, route, appCfg.RateLimit.RateLimitPolicy)
	}

	questions := router.Group("/api/questions")
	questions.GET("", h.ListQuestions)
	questions.GET("/:id", h.GetQuestion)
	questions.POST("/run", limited("run"), h.RunCode)

	runs := router.Group("/api/v1/runs")
	runs.POST("", limited("submit"), h.SubmitRun)
	runs.GET("/stream", limited("stream"), h.Stream)
	runs.GET("/:id", h.GetRun)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

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

	"codejudge/internal/common/cache"
	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/common/ratelimit"
	judgecache "codejudge/internal/judge/cache"
	"codejudge/internal/judge/controller"
	"codejudge/internal/judge/metrics"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/language"
	"codejudge/internal/judge/sandbox/workspace"
	"codejudge/internal/judge/service"
	"codejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", ".env", "Path to optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load env file failed: %v\n", err)
		return
	}

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	eng := engine.NewEngine(appCfg.Judge.toEngineConfig())
	registry, err := language.NewRegistry(appCfg.Language.languages(), eng, language.Options{
		CompileTimeout: appCfg.Judge.CompileTimeout,
		Metrics:        recorder,
	})
	if err != nil {
		logger.Error(context.Background(), "init language registry failed", zap.Error(err))
		return
	}
	workspaces, err := workspace.NewManager(appCfg.Judge.WorkRoot)
	if err != nil {
		logger.Error(context.Background(), "init workspace root failed", zap.Error(err))
		return
	}
	worker := sandbox.NewWorker(eng, registry, workspaces)
	worker.SetMetricsRecorder(recorder)

	svcCfg := service.Config{
		Judge:          worker,
		Languages:      registry,
		Metrics:        recorder,
		Limits:         appCfg.Judge.Limits,
		WorkerPoolSize: appCfg.Worker.PoolSize,
		AcquireTimeout: appCfg.Worker.AcquireTimeout,
		WorkerTimeout:  appCfg.Worker.Timeout,
		StatusTimeout:  appCfg.Cache.StatusTimeout,
	}
	checks := make(map[string]controller.HealthCheck)

	var limiter commonmw.RateLimiter
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		checks["redis"] = redisCache.Ping

		resultCache, err := judgecache.NewResultCache(redisCache, appCfg.Cache.ResultTTL)
		if err != nil {
			logger.Error(context.Background(), "init result cache failed", zap.Error(err))
			return
		}
		svcCfg.Results = resultCache
		svcCfg.Statuses = repository.NewStatusRepository(redisCache, appCfg.Cache.StatusTTL)
		if appCfg.RateLimit.Execute.Enabled() || appCfg.RateLimit.Submit.Enabled() {
			limiter = ratelimit.NewService(redisCache, appCfg.RateLimit.Execute.Window, appCfg.Cache.StatusTimeout)
		}
	}

	var mqClient *mq.KafkaQueue
	if appCfg.Kafka.Enabled() {
		mqClient, err = mq.NewKafkaQueue(appCfg.Kafka.KafkaConfig)
		if err != nil {
			logger.Error(context.Background(), "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Close()
		}()
		checks["kafka"] = mqClient.Ping

		svcCfg.Queue = mqClient
		svcCfg.Publisher = repository.NewMQResultPublisher(mqClient, appCfg.Kafka.ResultTopic)
		svcCfg.RequestTopic = appCfg.Kafka.RequestTopic
		svcCfg.RetryTopic = appCfg.Kafka.RetryTopic
		svcCfg.DeadLetterTopic = appCfg.Kafka.DeadLetter
		svcCfg.PoolRetryMax = appCfg.Kafka.PoolRetryMax
		svcCfg.PoolRetryBase = appCfg.Kafka.PoolRetryBase
		svcCfg.PoolRetryMaxDelay = appCfg.Kafka.PoolRetryMaxD
	}

	judgeSvc, err := service.NewService(svcCfg)
	if err != nil {
		logger.Error(context.Background(), "init judge service failed", zap.Error(err))
		return
	}
	worker.SetStatusReporter(judgeSvc)

	if mqClient != nil {
		err = mqClient.Subscribe(context.Background(), appCfg.Kafka.RequestTopic, judgeSvc.HandleMessage, &mq.SubscribeOptions{
			ConsumerGroup:   appCfg.Kafka.ConsumerGroup,
			Concurrency:     appCfg.Kafka.Concurrency,
			MaxRetries:      appCfg.Kafka.MaxRetries,
			RetryDelay:      appCfg.Kafka.RetryDelay,
			DeadLetterTopic: appCfg.Kafka.DeadLetter,
			MessageTTL:      appCfg.Kafka.MessageTTL,
		})
		if err != nil {
			logger.Error(context.Background(), "subscribe kafka failed", zap.Error(err))
			return
		}
		if err := mqClient.Start(); err != nil {
			logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mqClient.Stop()
		}()
	}

	judgeController := controller.NewJudgeController(judgeSvc, checks)
	httpServer := buildHTTPServer(appCfg, judgeController, limiter)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Int("pool_size", appCfg.Worker.PoolSize),
			zap.Bool("async", judgeSvc.AsyncEnabled()),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg *AppConfig, judgeController *controller.JudgeController, limiter commonmw.RateLimiter) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.AccessLogMiddleware())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))
	router.Use(commonmw.BodyLimitMiddleware(cfg.Server.BodyLimitBytes))

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	var execute, submit []gin.HandlerFunc
	if limiter != nil {
		if cfg.RateLimit.Execute.Enabled() {
			execute = append(execute, commonmw.RateLimitMiddleware(limiter, "execute", cfg.RateLimit.Execute))
		}
		if cfg.RateLimit.Submit.Enabled() {
			submit = append(submit, commonmw.RateLimitMiddleware(limiter, "submit", cfg.RateLimit.Submit))
		}
	}
	judgeController.RegisterRoutes(router, execute, submit)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

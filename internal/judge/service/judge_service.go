// Package service wires the judge worker to its transports: synchronous
// HTTP calls and asynchronous queue tasks.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/contextkey"
	"codejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultAcquireTimeout = 2 * time.Second

// LanguageLister lists the languages the worker can judge.
type LanguageLister interface {
	Languages() []profile.LanguageSpec
}

// ResultStore caches finished results by request content.
type ResultStore interface {
	Get(ctx context.Context, req sandbox.ExecutionRequest) (result.JudgeResult, bool, error)
	Set(ctx context.Context, req sandbox.ExecutionRequest, res result.JudgeResult) error
}

// StatusStore keeps asynchronous task progress.
type StatusStore interface {
	Get(ctx context.Context, taskID string) (model.TaskStatus, error)
	Save(ctx context.Context, status model.TaskStatus) error
}

// Metrics receives pool and cache events.
type Metrics interface {
	SlotAcquired()
	SlotReleased()
	ObserveCache(outcome string)
}

type noopMetrics struct{}

func (noopMetrics) SlotAcquired()       {}
func (noopMetrics) SlotReleased()       {}
func (noopMetrics) ObserveCache(string) {}

// Service handles judge requests.
type Service struct {
	judge     sandbox.Service
	languages LanguageLister
	langIDs   map[string]string
	results   ResultStore
	statuses  StatusStore
	publisher repository.ResultPublisher
	queue     mq.Producer
	metrics   Metrics
	limits    Limits

	requestTopic  string
	retryTopic    string
	deadLetter    string
	poolRetryMax  int
	poolRetryBase time.Duration
	poolRetryMaxD time.Duration

	acquireTimeout time.Duration
	workerTimeout  time.Duration
	statusTimeout  time.Duration
	sem            chan struct{}
}

// Config holds service dependencies and settings. Results, Statuses,
// Publisher and Queue are optional; asynchronous judging needs Statuses
// and Queue.
type Config struct {
	Judge     sandbox.Service
	Languages LanguageLister
	Results   ResultStore
	Statuses  StatusStore
	Publisher repository.ResultPublisher
	Queue     mq.Producer
	Metrics   Metrics
	Limits    Limits

	RequestTopic      string
	RetryTopic        string
	DeadLetterTopic   string
	PoolRetryMax      int
	PoolRetryBase     time.Duration
	PoolRetryMaxDelay time.Duration

	WorkerPoolSize int
	AcquireTimeout time.Duration
	WorkerTimeout  time.Duration
	StatusTimeout  time.Duration
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Judge == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("judge worker is required")
	}
	if cfg.Languages == nil {
		return nil, appErr.New(appErr.JudgeSystemError).WithMessage("language list is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	acquireTimeout := cfg.AcquireTimeout
	if acquireTimeout <= 0 {
		acquireTimeout = defaultAcquireTimeout
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		judge:          cfg.Judge,
		languages:      cfg.Languages,
		langIDs:        languageIndex(cfg.Languages.Languages()),
		results:        cfg.Results,
		statuses:       cfg.Statuses,
		publisher:      cfg.Publisher,
		queue:          cfg.Queue,
		metrics:        metrics,
		limits:         cfg.Limits.withDefaults(),
		requestTopic:   cfg.RequestTopic,
		retryTopic:     cfg.RetryTopic,
		deadLetter:     cfg.DeadLetterTopic,
		poolRetryMax:   cfg.PoolRetryMax,
		poolRetryBase:  cfg.PoolRetryBase,
		poolRetryMaxD:  cfg.PoolRetryMaxDelay,
		acquireTimeout: acquireTimeout,
		workerTimeout:  cfg.WorkerTimeout,
		statusTimeout:  cfg.StatusTimeout,
		sem:            make(chan struct{}, poolSize),
	}, nil
}

// Execute judges one request synchronously.
func (s *Service) Execute(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error) {
	sreq, err := s.prepare(req, requestIDFromContext(ctx))
	if err != nil {
		return model.ExecuteResponse{}, err
	}
	res, err := s.run(ctx, sreq)
	if err != nil {
		return model.ExecuteResponse{}, err
	}
	return model.NewExecuteResponse(res), nil
}

// Languages lists the supported languages.
func (s *Service) Languages() []model.LanguageInfo {
	specs := s.languages.Languages()
	out := make([]model.LanguageInfo, 0, len(specs))
	for _, spec := range specs {
		out = append(out, model.NewLanguageInfo(spec))
	}
	return out
}

// AsyncEnabled reports whether Submit and GetTask are available.
func (s *Service) AsyncEnabled() bool {
	return s.queue != nil && s.statuses != nil && s.requestTopic != ""
}

// prepare checks service limits and converts the wire request.
func (s *Service) prepare(req model.ExecuteRequest, requestID string) (sandbox.ExecutionRequest, error) {
	if err := s.limits.check(req); err != nil {
		return sandbox.ExecutionRequest{}, err
	}
	sreq := req.ToSandbox(requestID)
	sreq.Language = s.canonicalLanguage(sreq.Language)
	sreq.TimeLimitMs = s.limits.clampTimeLimit(sreq.TimeLimitMs)
	sreq = sreq.WithDefaults()
	if err := sreq.Validate(); err != nil {
		return sandbox.ExecutionRequest{}, err
	}
	return sreq, nil
}

// run serves from the cache or judges under a pool slot.
func (s *Service) run(ctx context.Context, req sandbox.ExecutionRequest) (result.JudgeResult, error) {
	if res, ok := s.lookupResult(ctx, req); ok {
		return res, nil
	}
	if err := s.acquireSlot(ctx); err != nil {
		return result.JudgeResult{}, err
	}
	defer s.releaseSlot()

	ctxWorker := ctx
	if s.workerTimeout > 0 {
		var cancel context.CancelFunc
		ctxWorker, cancel = context.WithTimeout(ctx, s.workerTimeout)
		defer cancel()
	}
	res, err := s.judge.Execute(ctxWorker, req)
	if err != nil {
		return result.JudgeResult{}, s.classifyFault(ctx, ctxWorker, err)
	}
	s.storeResult(ctx, req, res)
	return res, nil
}

func (s *Service) lookupResult(ctx context.Context, req sandbox.ExecutionRequest) (result.JudgeResult, bool) {
	if s.results == nil || req.AdHoc() {
		return result.JudgeResult{}, false
	}
	res, ok, err := s.results.Get(ctx, req)
	if err != nil {
		s.metrics.ObserveCache("error")
		logger.Warn(ctx, "result cache lookup failed", zap.Error(err))
		return result.JudgeResult{}, false
	}
	if !ok {
		s.metrics.ObserveCache("miss")
		return result.JudgeResult{}, false
	}
	s.metrics.ObserveCache("hit")
	logger.Debug(ctx, "result served from cache", zap.String("language", req.Language), zap.String("status", string(res.Status)))
	return res, true
}

func (s *Service) storeResult(ctx context.Context, req sandbox.ExecutionRequest, res result.JudgeResult) {
	if s.results == nil || req.AdHoc() {
		return
	}
	if err := s.results.Set(ctx, req, res); err != nil {
		logger.Warn(ctx, "result cache store failed", zap.Error(err))
	}
}

// canonicalLanguage maps an id or alias to the registered language id.
// Unknown names are returned unchanged and judged as a compile error.
func (s *Service) canonicalLanguage(name string) string {
	if id, ok := s.langIDs[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return name
}

func languageIndex(specs []profile.LanguageSpec) map[string]string {
	index := make(map[string]string, len(specs)*2)
	for _, spec := range specs {
		id := strings.ToLower(strings.TrimSpace(spec.ID))
		if id == "" {
			continue
		}
		index[id] = id
		for _, alias := range spec.Aliases {
			if alias = strings.ToLower(strings.TrimSpace(alias)); alias != "" {
				index[alias] = id
			}
		}
	}
	return index
}

// classifyFault keeps coded errors and turns the rest into judge system errors.
func (s *Service) classifyFault(ctx, ctxWorker context.Context, err error) error {
	if ctx.Err() == nil && errors.Is(ctxWorker.Err(), context.DeadlineExceeded) {
		return appErr.Wrapf(err, appErr.Timeout, "judge exceeded %s", s.workerTimeout)
	}
	if appErr.GetCode(err) == appErr.InternalServerError {
		return appErr.Wrapf(err, appErr.JudgeSystemError, "judge failed")
	}
	return err
}

func requestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextkey.RequestID).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

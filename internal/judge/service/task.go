package service

import (
	"context"
	"encoding/json"
	"time"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/contextkey"
	"codejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type taskIDKey struct{}

// Submit queues a request for asynchronous judging.
func (s *Service) Submit(ctx context.Context, req model.ExecuteRequest) (model.SubmitResponse, error) {
	if !s.AsyncEnabled() {
		return model.SubmitResponse{}, appErr.New(appErr.ServiceUnavailable).WithMessage("asynchronous judging is not configured")
	}
	taskID := uuid.NewString()
	if _, err := s.prepare(req, taskID); err != nil {
		return model.SubmitResponse{}, err
	}
	payload, err := json.Marshal(model.JudgeMessage{ID: taskID, Request: req})
	if err != nil {
		return model.SubmitResponse{}, appErr.Wrapf(err, appErr.QueueMessageInvalid, "encode task failed")
	}

	queued := model.TaskStatus{ID: taskID, State: model.TaskQueued, Language: req.Language, TotalTests: len(req.TestCases)}
	if err := s.saveStatus(ctx, queued); err != nil {
		return model.SubmitResponse{}, err
	}
	msg := mq.NewMessage(payload)
	msg.ID = taskID
	if traceID, ok := ctx.Value(contextkey.TraceID).(string); ok && traceID != "" {
		msg.SetHeader("trace-id", traceID)
	}
	if err := s.queue.Publish(ctx, s.requestTopic, msg); err != nil {
		return model.SubmitResponse{}, err
	}
	logger.Info(ctx, "judge task queued", zap.String("task_id", taskID), zap.String("language", req.Language))
	return model.SubmitResponse{ID: taskID, State: model.TaskQueued}, nil
}

// GetTask returns the progress of an asynchronous task.
func (s *Service) GetTask(ctx context.Context, taskID string) (model.TaskStatus, error) {
	if s.statuses == nil {
		return model.TaskStatus{}, appErr.New(appErr.ServiceUnavailable).WithMessage("asynchronous judging is not configured")
	}
	return s.statuses.Get(ctx, taskID)
}

// HandleMessage judges one queued task. Requests that can never succeed are
// recorded as failed and acknowledged. Host faults are returned for retry and
// the task only turns FAILED on the attempt that goes to the dead letter topic,
// so each task publishes exactly one result.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var payload model.JudgeMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		logger.Warn(ctx, "drop undecodable judge task", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if payload.ID == "" {
		payload.ID = msg.ID
	}
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, contextkey.RequestID, payload.ID)
	if traceID, ok := msg.GetHeader("trace-id"); ok {
		ctx = context.WithValue(ctx, contextkey.TraceID, traceID)
	}
	ctx = context.WithValue(ctx, taskIDKey{}, payload.ID)

	sreq, err := s.prepare(payload.Request, payload.ID)
	if err != nil {
		s.finishTask(ctx, payload.ID, payload.Request.Language, nil, err)
		return nil
	}

	res, err := s.run(ctx, sreq)
	if err != nil {
		if appErr.Is(err, appErr.JudgeQueueFull) && s.retryTopic != "" {
			if s.poolRetryExhausted(msg) {
				s.finishTask(ctx, payload.ID, sreq.Language, nil, err)
			}
			return s.requeueForPoolFull(ctx, msg)
		}
		if !finalAttempt(ctx, msg) {
			logger.Warn(ctx, "judge task will be retried",
				zap.String("task_id", payload.ID),
				zap.Int("attempt", msg.RetryCount+1),
				zap.Error(err),
			)
			return err
		}
		s.finishTask(context.WithoutCancel(ctx), payload.ID, sreq.Language, nil, err)
		return err
	}
	resp := model.NewExecuteResponse(res)
	s.finishTask(ctx, payload.ID, sreq.Language, &resp, nil)
	return nil
}

// finalAttempt reports whether the consumer gives up on msg if this attempt fails.
func finalAttempt(ctx context.Context, msg *mq.Message) bool {
	return msg.RetryCount >= msg.MaxRetries || ctx.Err() != nil
}

// poolRetryExhausted reports whether a full pool sends msg to the dead letter
// topic instead of requeueing it.
func (s *Service) poolRetryExhausted(msg *mq.Message) bool {
	return s.deadLetter != "" && s.poolRetryMax > 0 && ParsePoolRetryCount(msg.Headers) >= s.poolRetryMax
}

// ReportStatus records worker progress of asynchronous tasks.
func (s *Service) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	taskID, ok := ctx.Value(taskIDKey{}).(string)
	if !ok || s.statuses == nil {
		return nil
	}
	if update.State == result.StateFinished {
		return nil
	}
	return s.saveStatus(ctx, model.TaskStatus{
		ID:         taskID,
		State:      model.TaskRunning,
		Language:   update.Language,
		Phase:      update.State,
		TotalTests: update.TotalTests,
		DoneTests:  update.DoneTests,
	})
}

func (s *Service) finishTask(ctx context.Context, taskID, language string, resp *model.ExecuteResponse, err error) {
	now := time.Now().Unix()
	status := model.TaskStatus{
		ID:        taskID,
		State:     model.TaskFinished,
		Language:  language,
		Response:  resp,
		UpdatedAt: now,
	}
	out := model.JudgeResultMessage{ID: taskID, Response: resp, FinishedAt: now}
	if err != nil {
		status.State = model.TaskFailed
		status.ErrorCode = int(appErr.GetCode(err))
		status.ErrorMessage = err.Error()
		out.ErrorCode = status.ErrorCode
		out.ErrorMessage = status.ErrorMessage
		logger.Warn(ctx, "judge task failed", zap.String("task_id", taskID), zap.Error(err))
	} else {
		status.Phase = result.StateFinished
		status.TotalTests = len(resp.Tests)
		status.DoneTests = len(resp.Tests)
	}

	if s.statuses != nil {
		if saveErr := s.saveStatus(ctx, status); saveErr != nil {
			logger.Warn(ctx, "update task status failed", zap.String("task_id", taskID), zap.Error(saveErr))
		}
	}
	if s.publisher != nil {
		if pubErr := s.publisher.PublishResult(ctx, out); pubErr != nil {
			logger.Error(ctx, "publish judge result failed", zap.String("task_id", taskID), zap.Error(pubErr))
		}
	}
}

func (s *Service) saveStatus(ctx context.Context, status model.TaskStatus) error {
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	return s.statuses.Save(ctxStatus, status)
}

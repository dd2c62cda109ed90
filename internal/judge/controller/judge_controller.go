package controller

import (
	"context"
	"net/http"
	"strings"
	"time"

	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeService is the service surface used by the HTTP handlers.
type JudgeService interface {
	Execute(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error)
	Submit(ctx context.Context, req model.ExecuteRequest) (model.SubmitResponse, error)
	GetTask(ctx context.Context, taskID string) (model.TaskStatus, error)
	Languages() []model.LanguageInfo
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// JudgeController handles judge requests.
type JudgeController struct {
	svc    JudgeService
	checks map[string]HealthCheck
}

// NewJudgeController creates a new controller. checks are run by Health.
func NewJudgeController(svc JudgeService, checks map[string]HealthCheck) *JudgeController {
	return &JudgeController{svc: svc, checks: checks}
}

// Execute judges a request and returns the verdict.
func (h *JudgeController) Execute(c *gin.Context) {
	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	resp, err := h.svc.Execute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, resp)
}

// Submit queues a request and returns the task id.
func (h *JudgeController) Submit(c *gin.Context) {
	var req model.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	ack, err := h.svc.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ack)
}

// GetTask returns the progress of one queued task.
func (h *JudgeController) GetTask(c *gin.Context) {
	taskID := strings.TrimSpace(c.Param("id"))
	if taskID == "" {
		response.BadRequest(c, "Invalid task id")
		return
	}
	status, err := h.svc.GetTask(c.Request.Context(), taskID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Languages lists the supported languages.
func (h *JudgeController) Languages(c *gin.Context) {
	response.Success(c, h.svc.Languages())
}

// Health reports the state of every configured dependency.
func (h *JudgeController) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			healthy = false
			continue
		}
		deps[name] = "ok"
	}
	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "dependencies": deps})
}

// RegisterRoutes mounts the judge API on r.
func (h *JudgeController) RegisterRoutes(r gin.IRouter, execute, submit []gin.HandlerFunc) {
	api := r.Group("/api/v1/judge")
	api.POST("/execute", append(execute, h.Execute)...)
	api.POST("/submit", append(submit, h.Submit)...)
	api.GET("/tasks/:id", h.GetTask)
	api.GET("/languages", h.Languages)
	r.GET("/healthz", h.Health)
}

func bindError(err error) error {
	if strings.Contains(err.Error(), "request body too large") {
		return appErr.Wrapf(err, appErr.CodeTooLarge, "request body too large")
	}
	return appErr.Wrapf(err, appErr.InvalidParams, "invalid request body")
}

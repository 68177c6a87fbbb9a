package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/problemstore"
	"offlinejudge/internal/judge/sandbox"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeService is the judging surface the controller needs.
type JudgeService interface {
	Run(ctx context.Context, sub model.Submission, progress sandbox.ProgressReporter) (*model.Report, error)
	Submit(ctx context.Context, sub model.Submission) (string, error)
	GetRun(ctx context.Context, runID string) (model.RunStatus, error)
}

// JudgeController handles run and question requests.
type JudgeController struct {
	judge    JudgeService
	problems problemstore.Reader
	stream   StreamConfig
}

// NewJudgeController creates a new controller.
func NewJudgeController(judge JudgeService, problems problemstore.Reader, stream StreamConfig) *JudgeController {
	return &JudgeController{judge: judge, problems: problems, stream: stream.withDefaults()}
}

// questionID accepts both "1" and 1 on the wire.
type questionID string

func (q *questionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = questionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("question_id must be a string or an integer")
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("question_id must be a string or an integer")
	}
	*q = questionID(n.String())
	return nil
}

type runRequest struct {
	QuestionID questionID `json:"question_id"`
	Code       string     `json:"code"`
}

func (r runRequest) submission() model.Submission {
	return model.Submission{QuestionID: string(r.QuestionID), Code: r.Code}
}

func bindRunRequest(c *gin.Context) (runRequest, error) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, appErr.Wrapf(err, appErr.InvalidParams, "invalid request body: %v", err)
	}
	if req.QuestionID == "" {
		return req, appErr.ValidationError("question_id", "required")
	}
	return req, nil
}

// RunCode judges a submission and answers with the report.
func (h *JudgeController) RunCode(c *gin.Context) {
	req, err := bindRunRequest(c)
	if err != nil {
		response.Run(c, err)
		return
	}
	rep, err := h.judge.Run(c.Request.Context(), req.submission(), nil)
	if err != nil {
		response.Run(c, err)
		return
	}
	c.JSON(200, rep)
}

// ListQuestions returns problem summaries ordered by id.
func (h *JudgeController) ListQuestions(c *gin.Context) {
	c.JSON(200, h.problems.List(c.Request.Context()))
}

// GetQuestion returns one problem record.
func (h *JudgeController) GetQuestion(c *gin.Context) {
	problem, err := h.problems.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Run(c, err)
		return
	}
	c.JSON(200, problem)
}

// SubmitRun enqueues a submission for background judging.
func (h *JudgeController) SubmitRun(c *gin.Context) {
	req, err := bindRunRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	runID, err := h.judge.Submit(c.Request.Context(), req.submission())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"run_id": runID})
}

// GetRun returns the status of a background run.
func (h *JudgeController) GetRun(c *gin.Context) {
	runID := c.Param("id")
	if runID == "" {
		response.BadRequest(c, "Invalid run id")
		return
	}
	status, err := h.judge.GetRun(c.Request.Context(), runID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// Health reports liveness and the number of problems served.
func (h *JudgeController) Health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok", "questions": len(h.problems.List(c.Request.Context()))})
}

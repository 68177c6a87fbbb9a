package response

import (
	"net/http"

	"offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response represents the standard envelope used by the v1 API
type Response struct {
	Code    errors.ErrorCode `json:"code"`               // Error code
	Message string           `json:"message"`            // Error message
	Data    interface{}      `json:"data,omitempty"`     // Response data (omit if nil)
	Details interface{}      `json:"details,omitempty"`  // Additional details (omit if nil)
	TraceID string           `json:"trace_id,omitempty"` // Request trace ID
}

// RunError is the terminal error object returned by the run endpoint when a
// submission cannot be judged at all.
type RunError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

// Success sends a successful response with data
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.Success,
		Message: "Success",
		Data:    data,
		TraceID: getTraceID(c),
	})
}

// Accepted sends a 202 response with data
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Response{
		Code:    errors.Success,
		Message: "Accepted",
		Data:    data,
		TraceID: getTraceID(c),
	})
}

// Error sends an error response
// It automatically extracts error code and message from the error
func Error(c *gin.Context, err error) {
	customErr := errors.GetError(err)
	logError(c, customErr)

	c.JSON(customErr.Code.HTTPStatus(), Response{
		Code:    customErr.Code,
		Message: customErr.Error(),
		Details: detailsOrNil(customErr.Details),
		TraceID: getTraceID(c),
	})
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(c *gin.Context, code errors.ErrorCode, message string) {
	Error(c, errors.New(code).WithMessage(orDefault(message, code)))
}

// BadRequest sends a 400 bad request error
func BadRequest(c *gin.Context, message string) {
	ErrorWithCode(c, errors.InvalidParams, message)
}

// NotFound sends a 404 not found error
func NotFound(c *gin.Context, message string) {
	ErrorWithCode(c, errors.NotFound, message)
}

// NewRunError builds the terminal error object for err.
func NewRunError(err error) RunError {
	customErr := errors.GetError(err)
	return RunError{
		Status:  "error",
		Message: customErr.Error(),
		Kind:    customErr.Code.Kind(),
	}
}

// Run sends a terminal run error. Load, entry point and configuration faults
// are a normal outcome of judging and answer 200; everything else keeps the
// status of its code.
func Run(c *gin.Context, err error) {
	customErr := errors.GetError(err)
	status := http.StatusOK
	if !errors.Terminal(customErr) {
		status = customErr.Code.HTTPStatus()
		logError(c, customErr)
	}
	c.JSON(status, NewRunError(customErr))
}

func logError(c *gin.Context, e *errors.Error) {
	logger.Error(c.Request.Context(), "request error",
		zap.Int("code", int(e.Code)),
		zap.String("message", e.Error()),
		zap.Any("details", e.Details),
		zap.String("stack", e.Stack),
	)
}

func detailsOrNil(details map[string]interface{}) interface{} {
	if len(details) == 0 {
		return nil
	}
	return details
}

func orDefault(message string, code errors.ErrorCode) string {
	if message == "" {
		return code.Message()
	}
	return message
}

// getTraceID extracts trace ID from context
func getTraceID(c *gin.Context) string {
	if traceID, exists := c.Get("trace_id"); exists {
		if s, ok := traceID.(string); ok {
			return s
		}
	}
	return ""
}

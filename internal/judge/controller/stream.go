package controller

import (
	"context"
	"net/http"
	"sync"
	"time"

	"offlinejudge/internal/judge/model"
	"offlinejudge/internal/judge/sandbox"
	appErr "offlinejudge/pkg/errors"
	"offlinejudge/pkg/utils/logger"
	"offlinejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// StreamConfig tunes the websocket progress stream.
type StreamConfig struct {
	// ReadTimeout bounds the wait for the client's run request.
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	// MaxMessageBytes caps the client's run request.
	MaxMessageBytes int64 `yaml:"maxMessageBytes"`
	// AllowedOrigins lists accepted Origin headers; empty means same host only.
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 256 << 10
	}
	return c
}

func (c StreamConfig) upgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}
	if len(c.AllowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(c.AllowedOrigins))
		for _, o := range c.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		u.CheckOrigin = func(r *http.Request) bool {
			if _, ok := allowed["*"]; ok {
				return true
			}
			_, ok := allowed[r.Header.Get("Origin")]
			return ok
		}
	}
	return u
}

const (
	streamStage  = "stage"
	streamResult = "result"
	streamReport = "report"
	streamError  = "error"
)

type streamMessage struct {
	Type   string                 `json:"type"`
	Stage  sandbox.Stage          `json:"stage,omitempty"`
	Result *model.ExecutionResult `json:"result,omitempty"`
	Report *model.Report          `json:"report,omitempty"`
	Error  *response.RunError     `json:"error,omitempty"`
}

// streamWriter serializes writes to one websocket connection and implements
// sandbox.ProgressReporter.
type streamWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
	failed  bool
}

func (w *streamWriter) send(ctx context.Context, msg streamMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed {
		return
	}
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	if err := w.conn.WriteJSON(msg); err != nil {
		w.failed = true
		logger.Debug(ctx, "stream write failed", zap.Error(err))
	}
}

func (w *streamWriter) sendError(ctx context.Context, err error) {
	runErr := response.NewRunError(err)
	w.send(ctx, streamMessage{Type: streamError, Error: &runErr})
}

func (w *streamWriter) OnStage(ctx context.Context, stage sandbox.Stage) {
	w.send(ctx, streamMessage{Type: streamStage, Stage: stage})
}

func (w *streamWriter) OnResult(ctx context.Context, res model.ExecutionResult) {
	w.send(ctx, streamMessage{Type: streamResult, Result: &res})
}

func (w *streamWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.timeout))
}

// Stream judges one submission over a websocket. The client sends a single
// {question_id, code} message; the server answers with one "result" message
// per case and a final "report" or "error" message. Closing the connection
// cancels the run.
func (h *JudgeController) Stream(c *gin.Context) {
	conn, err := h.stream.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	w := &streamWriter{conn: conn, timeout: h.stream.WriteTimeout}

	conn.SetReadLimit(h.stream.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.stream.ReadTimeout))
	var req runRequest
	if err := conn.ReadJSON(&req); err != nil {
		w.sendError(ctx, appErr.Wrapf(err, appErr.InvalidParams, "invalid run request: %v", err))
		w.close()
		return
	}
	if req.QuestionID == "" {
		w.sendError(ctx, appErr.ValidationError("question_id", "required"))
		w.close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	rep, err := h.judge.Run(ctx, req.submission(), w)
	if err != nil {
		w.sendError(ctx, err)
	} else {
		w.send(ctx, streamMessage{Type: streamReport, Report: rep})
	}
	w.close()
}

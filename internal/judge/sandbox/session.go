package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"offlinejudge/internal/judge/sandbox/engine"
	"offlinejudge/internal/judge/sandbox/harness"
	"offlinejudge/internal/judge/sandbox/result"
)

const closeGrace = time.Second

var (
	errTimeout          = errors.New("request timed out")
	errSessionClosed    = errors.New("session is closed")
	errResponseTooLarge = errors.New("response exceeds size limit")
)

// exitError reports that the interpreter died before answering.
type exitError struct {
	status result.ExitStatus
}

func (e *exitError) Error() string { return e.status.Describe() }

// protocolError reports an unreadable or rejected protocol line.
type protocolError struct {
	reason string
}

func (e *protocolError) Error() string { return "protocol error: " + e.reason }

// session is the request/response channel to one live harness process.
// It is used by a single goroutine; after any failed round trip the process
// has been killed and the session is dead.
type session struct {
	proc        engine.Process
	stdin       io.Writer
	reader      *bufio.Reader
	maxResponse int
	dead        bool
}

func newSession(proc engine.Process, maxResponse int) *session {
	return &session{
		proc:        proc,
		stdin:       proc.Stdin(),
		reader:      bufio.NewReaderSize(proc.Stdout(), 64*1024),
		maxResponse: maxResponse,
	}
}

type reply struct {
	resp harness.Response
	err  error
}

// roundTrip sends req and waits up to timeout for the answer. Timeout and
// cancellation kill the process.
func (s *session) roundTrip(ctx context.Context, req harness.Request, timeout time.Duration) (harness.Response, error) {
	if s.dead {
		return harness.Response{}, errSessionClosed
	}
	line, err := json.Marshal(req)
	if err != nil {
		return harness.Response{}, fmt.Errorf("encode request: %w", err)
	}
	line = append(line, '\n')

	ch := make(chan reply, 1)
	go func() {
		if _, err := s.stdin.Write(line); err != nil {
			ch <- reply{err: err}
			return
		}
		raw, err := readLine(s.reader, s.maxResponse)
		if err != nil {
			ch <- reply{err: err}
			return
		}
		var resp harness.Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			ch <- reply{err: &protocolError{reason: err.Error()}}
			return
		}
		ch <- reply{resp: resp}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		if r.err != nil {
			return harness.Response{}, s.fail(r.err)
		}
		if r.resp.Fault == harness.FaultProtocol {
			return harness.Response{}, s.fail(&protocolError{reason: r.resp.Error})
		}
		return r.resp, nil
	case <-timer.C:
		s.abort()
		return harness.Response{}, errTimeout
	case <-ctx.Done():
		s.abort()
		return harness.Response{}, ctx.Err()
	}
}

// fail kills the process and classifies a transport error.
func (s *session) fail(err error) error {
	s.abort()
	var perr *protocolError
	if errors.As(err, &perr) {
		return perr
	}
	if errors.Is(err, errResponseTooLarge) {
		return &protocolError{reason: err.Error()}
	}
	return &exitError{status: s.proc.Wait()}
}

func (s *session) abort() {
	s.dead = true
	s.proc.Kill()
}

// close ends the session, letting the harness exit on EOF before killing it.
func (s *session) close() result.ExitStatus {
	if !s.dead {
		s.dead = true
		if c, ok := s.stdin.(io.Closer); ok {
			_ = c.Close()
		}
		done := make(chan struct{})
		go func() {
			s.proc.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(closeGrace):
			s.proc.Kill()
		}
	} else {
		s.proc.Kill()
	}
	return s.proc.Wait()
}

func readLine(r *bufio.Reader, max int) ([]byte, error) {
	var buf []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if max > 0 && len(buf)+len(chunk) > max {
			return nil, errResponseTooLarge
		}
		buf = append(buf, chunk...)
		if err == nil {
			return buf, nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, err
		}
	}
}

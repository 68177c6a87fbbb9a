package repl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"offlinejudge/internal/cli/command"
	httpclient "offlinejudge/internal/cli/http"

	"github.com/google/shlex"
)

// Session holds REPL state.
type Session struct {
	client     *httpclient.Client
	commands   map[string]command.Command
	prettyJSON bool
	in         *bufio.Reader
	out        *bufio.Writer
}

func New(client *httpclient.Client, commands map[string]command.Command, prettyJSON bool, in io.Reader, out io.Writer) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		prettyJSON: prettyJSON,
		in:         bufio.NewReader(in),
		out:        bufio.NewWriter(out),
	}
}

// Run reads commands until exit or end of input.
func (s *Session) Run(ctx context.Context) {
	for {
		_, _ = s.out.WriteString("judge> ")
		_ = s.out.Flush()
		line, err := s.in.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				s.printLine("read input failed: %v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			s.printLine("bye")
			return
		}
		if s.handleSystemCommand(line) {
			continue
		}
		if err := s.Exec(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) bool {
	if line == "help" {
		s.printHelp()
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if line == "show config" {
		s.printLine("base: %s", s.client.BaseURL())
		return true
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		s.printLine("usage: set base <url> | set timeout <duration>")
		return
	}
	switch parts[0] {
	case "base":
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	default:
		s.printLine("unknown set command")
	}
}

// Exec runs one "<service> <action> key=value ..." line.
func (s *Session) Exec(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	cmd, ok := s.commands[tokens[0]+" "+tokens[1]]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", tokens[0], tokens[1])
	}
	params, err := command.ParseParams(tokens[2:], cmd.Fields)
	if err != nil {
		return err
	}

	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	if req.Stream {
		return s.client.Stream(ctx, req.Path, req.Body, s.renderStreamMessage)
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	return nil
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		if field.Type == command.FieldFile && params.Get("code") != "" {
			continue
		}
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(prompt string) (string, error) {
	s.printLine("%s:", prompt)
	line, err := s.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) renderResponse(resp httpclient.Response) {
	s.printLine("HTTP %d (%s) request_id=%s", resp.StatusCode, resp.Duration.Round(time.Millisecond), resp.RequestID)
	if len(resp.Body) == 0 {
		return
	}
	s.printJSON(resp.Body)
}

type streamEvent struct {
	Type   string `json:"type"`
	Stage  string `json:"stage"`
	Result struct {
		ID     int     `json:"id"`
		Passed bool    `json:"passed"`
		Error  *string `json:"error"`
	} `json:"result"`
}

// renderStreamMessage prints stages and per-case verdicts on one line each
// and the final report or error in full.
func (s *Session) renderStreamMessage(raw json.RawMessage) {
	var ev streamEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.printLine("%s", string(raw))
		return
	}
	switch ev.Type {
	case "stage":
		s.printLine("[%s]", ev.Stage)
	case "result":
		verdict := "FAIL"
		if ev.Result.Passed {
			verdict = "PASS"
		}
		if ev.Result.Error != nil {
			verdict = *ev.Result.Error
		}
		s.printLine("case %d: %s", ev.Result.ID, verdict)
	default:
		s.printJSON(raw)
	}
}

func (s *Session) printJSON(body []byte) {
	if s.prettyJSON {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			s.printLine("%s", buf.String())
			return
		}
	}
	s.printLine("%s", string(body))
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout | show config")
	s.printLine("examples:")
	s.printLine("  question list")
	s.printLine("  question show id=1")
	s.printLine("  run code question_id=1 code_file=./solution.py")
	s.printLine("  run stream question_id=1 code_file=./solution.py")
	s.printLine("  run submit question_id=1 code_file=./solution.py")
	s.printLine("  run status id=<run_id>")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.out, format+"\n", args...)
	_ = s.out.Flush()
}

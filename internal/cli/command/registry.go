package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

var submissionFields = []Field{
	{Name: "question_id", Aliases: []string{"q", "id"}, Prompt: "question_id", Type: FieldString, Required: true},
	{Name: "code_file", Aliases: []string{"file", "f"}, Prompt: "path to solution.py", Type: FieldFile, Required: true},
}

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "question",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/questions",
		},
		{
			Service:      "question",
			Action:       "show",
			Method:       "GET",
			PathTemplate: "/api/questions/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"question_id", "q"}, Prompt: "question_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "run",
			Action:       "code",
			Method:       "POST",
			PathTemplate: "/api/questions/run",
			Fields:       submissionFields,
		},
		{
			Service:      "run",
			Action:       "stream",
			Method:       "GET",
			PathTemplate: "/api/v1/runs/stream",
			Stream:       true,
			Fields:       submissionFields,
		},
		{
			Service:      "run",
			Action:       "submit",
			Method:       "POST",
			PathTemplate: "/api/v1/runs",
			Fields:       submissionFields,
		},
		{
			Service:      "run",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/v1/runs/:id",
			Fields: []Field{
				{Name: "id", Aliases: []string{"run_id"}, Prompt: "run_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "service",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/healthz",
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		result[cmd.Key()] = cmd
	}
	return result
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method == "POST" || cmd.Stream {
		payload, err := buildSubmissionPayload(params)
		if err != nil {
			return RequestSpec{}, err
		}
		body, err = json.Marshal(payload)
		if err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
		}
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Stream: cmd.Stream,
		Body:   body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	placeholder := ":id"
	if strings.Contains(path, placeholder) {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
	}
	return path, nil
}

// buildSubmissionPayload produces the {question_id, code} body shared by
// every run command. Inline code= wins over code_file=.
func buildSubmissionPayload(params Params) (map[string]string, error) {
	questionID := strings.TrimSpace(params.Get("question_id"))
	if questionID == "" {
		return nil, fmt.Errorf("question_id is required")
	}
	code := params.Get("code")
	if code == "" && params.Get("code_file") != "" {
		var err error
		code, err = ReadFile(params.Get("code_file"))
		if err != nil {
			return nil, err
		}
	}
	if code == "" {
		return nil, fmt.Errorf("code or code_file is required")
	}
	return map[string]string{
		"question_id": questionID,
		"code":        code,
	}, nil
}

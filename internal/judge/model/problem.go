package model

import (
	"offlinejudge/internal/judge/value"
)

// Problem is one immutable judging task from the problem database.
type Problem struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug,omitempty"`
	Difficulty   string     `json:"difficulty"`
	Description  string     `json:"description,omitempty"`
	FunctionName string     `json:"function_name"`
	Params       []string   `json:"params,omitempty"`
	TestCases    []TestCase `json:"test_cases"`
}

// TestCase maps parameter names to inputs and carries the expected output.
type TestCase struct {
	Input  value.Value `json:"input"`
	Output value.Value `json:"output"`
}

// ParamNames returns the declared parameter names, falling back to the key
// order of the first test case input.
func (p *Problem) ParamNames() []string {
	if len(p.Params) > 0 {
		out := make([]string, len(p.Params))
		copy(out, p.Params)
		return out
	}
	if len(p.TestCases) == 0 {
		return nil
	}
	return p.TestCases[0].Input.Keys()
}

// Summary is the listing view of a problem.
type Summary struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug,omitempty"`
	Difficulty string `json:"difficulty"`
	Cases      int    `json:"test_case_count"`
}

// Summary returns the listing view of p.
func (p *Problem) Summary() Summary {
	return Summary{
		ID:         p.ID,
		Title:      p.Title,
		Slug:       p.Slug,
		Difficulty: p.Difficulty,
		Cases:      len(p.TestCases),
	}
}

package command

import (
	"fmt"
	"os"
	"strings"
)

// FieldType says how a field value becomes part of the request.
type FieldType int

const (
	FieldString FieldType = iota
	// FieldFile values are paths; the file contents are sent.
	FieldFile
)

// Field is one key=value input of a command.
type Field struct {
	Name     string
	Aliases  []string
	Prompt   string
	Type     FieldType
	Required bool
}

// Command maps "<service> <action>" onto an endpoint of the judge service.
type Command struct {
	Service      string
	Action       string
	Method       string
	PathTemplate string
	// Stream commands talk to a websocket endpoint.
	Stream bool
	Fields []Field
}

func (c Command) Key() string {
	return c.Service + " " + c.Action
}

// RequestSpec is a request ready to send.
type RequestSpec struct {
	Method string
	Path   string
	Stream bool
	Body   []byte
}

// Params are case-insensitive command inputs.
type Params map[string]string

// ParseParams reads key=value tokens and folds aliases onto field names.
func ParseParams(tokens []string, fields []Field) (Params, error) {
	p := Params{}
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, want key=value", tok)
		}
		p.Set(key, value)
	}
	p.Canonicalize(fields)
	return p, nil
}

func (p Params) Get(key string) string { return p[strings.ToLower(key)] }

func (p Params) Set(key, value string) { p[strings.ToLower(key)] = value }

// Canonicalize renames alias keys to their field name. An explicit field
// name wins over an alias.
func (p Params) Canonicalize(fields []Field) {
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		for _, alias := range f.Aliases {
			a := strings.ToLower(alias)
			v, ok := p[a]
			if !ok || a == name {
				continue
			}
			delete(p, a)
			if _, set := p[name]; !set {
				p[name] = v
			}
		}
	}
}

// ReadFile returns a source file's contents.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

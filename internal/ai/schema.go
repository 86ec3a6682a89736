package ai

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	SchemaResumeAnalysis     = "resume_analysis.json"
	SchemaInterviewQuestions = "interview_questions.json"
	SchemaInterviewAnalysis  = "interview_analysis.json"
	SchemaNetworkingMessage  = "networking_message.json"
)

// ValidationError reports model output that does not match its schema.
type ValidationError struct {
	Schema string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("AI response failed %s validation: %s", strings.TrimSuffix(e.Schema, ".json"), e.Reason)
}

// Validator holds the compiled output schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		b, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}
		if err := compiler.AddResource(e.Name(), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", e.Name(), err)
		}
		names = append(names, e.Name())
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		s, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = s
	}

	return v, nil
}

// Decode validates raw against the named schema and unmarshals it into out.
// It returns the normalized JSON that was validated.
func (v *Validator) Decode(schema string, raw string, out any) ([]byte, error) {
	s, ok := v.schemas[schema]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schema)
	}

	body := ExtractJSON(raw)
	if body == "" {
		return nil, &ValidationError{Schema: schema, Reason: "response contained no JSON object"}
	}

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &ValidationError{Schema: schema, Reason: "invalid JSON: " + err.Error()}
	}

	if err := s.Validate(doc); err != nil {
		return nil, &ValidationError{Schema: schema, Reason: describe(err)}
	}

	if err := json.Unmarshal([]byte(body), out); err != nil {
		return nil, &ValidationError{Schema: schema, Reason: err.Error()}
	}

	normalized, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal validated result: %w", err)
	}

	return normalized, nil
}

// describe flattens the leaf causes of a schema validation error.
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}

	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)

	return strings.Join(msgs, "; ")
}

// ExtractJSON strips markdown fences and surrounding prose from a model
// response, returning the outermost JSON object or "".
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

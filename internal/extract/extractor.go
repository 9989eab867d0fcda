// Package extract turns raw model completions into validated data objects.
// The producer is a free-text LLM that wraps JSON in prose, reasoning
// blocks, markdown fences, or trailing commentary, so the parser is
// maximally permissive on syntax and strict on semantic shape.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"parley/internal/logging"
)

// ===== PARSE STEPS AND FAILURES =====

// Step identifies the stage of the cascade that failed.
type Step string

const (
	StepLocate Step = "locate" // no brace-delimited object anywhere
	StepDecode Step = "decode" // object found but not decodable
	StepSchema Step = "schema" // decoded but shape invalid
)

// ParseError is the typed failure returned by Extract. It names the step
// that failed so callers can distinguish "model emitted no JSON" from
// "JSON had the wrong shape".
type ParseError struct {
	Step   Step
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extraction failed at %s step: %s", e.Step, e.Detail)
}

// Method records which cascade branch produced the object.
type Method string

const (
	MethodDirect  Method = "direct"  // completion began with the object
	MethodFenced  Method = "fenced"  // object inside a markdown code fence
	MethodScanned Method = "scanned" // object located by the balanced-brace scan
)

// Result is a successful extraction.
type Result struct {
	Object   map[string]any
	Method   Method
	Trailing string   // text after the decoded object, logged not parsed
	Warnings []string // non-fatal oddities observed while parsing
}

// Stats counts cascade outcomes since construction.
type Stats struct {
	Total    int64
	Direct   int64
	Fenced   int64
	Scanned  int64
	Failures int64
}

// ===== SCHEMA =====

// Kind constrains a field's decoded type.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Field is one expected key in the decoded object.
type Field struct {
	Key  string
	Kind Kind
}

// Schema is the expected shape of a decoded object. Required fields must
// be present and type-coercible; optional fields are checked only when
// present. Extra keys are always allowed.
type Schema struct {
	Required []Field
	Optional []Field
}

func kindOK(kind Kind, v any) bool {
	switch kind {
	case KindAny:
		return true
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, int, int64, json.Number:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindList:
		_, ok := v.([]any)
		return ok
	case KindMap:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func kindName(kind Kind) string {
	switch kind {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "any"
	}
}

// Validate checks obj against the schema. Null required values count as
// missing; null optional values are ignored.
func (s Schema) Validate(obj map[string]any) error {
	for _, f := range s.Required {
		v, ok := obj[f.Key]
		if !ok || v == nil {
			return fmt.Errorf("missing required key %q", f.Key)
		}
		if !kindOK(f.Kind, v) {
			return fmt.Errorf("key %q is not a %s", f.Key, kindName(f.Kind))
		}
	}
	for _, f := range s.Optional {
		v, ok := obj[f.Key]
		if !ok || v == nil {
			continue
		}
		if !kindOK(f.Kind, v) {
			return fmt.Errorf("key %q is not a %s", f.Key, kindName(f.Kind))
		}
	}
	return nil
}

// ===== REASONING SIDECAR =====

var reasoningBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripReasoning removes a delimited internal-reasoning block from a
// completion. A lone closing tag (the opening tag swallowed upstream)
// also splits: everything through the last </think> is dropped.
func StripReasoning(s string) string {
	s = reasoningBlock.ReplaceAllString(s, "")
	if idx := strings.LastIndex(s, "</think>"); idx >= 0 {
		s = s[idx+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// ===== EXTRACTOR =====

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Extractor runs the tolerant parse cascade. Safe for concurrent use.
type Extractor struct {
	log *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates an Extractor. A nil logger is replaced with a nop logger.
func New(log *zap.Logger) *Extractor {
	return &Extractor{log: logging.OrNop(log)}
}

// Extract reduces raw model text to a validated object. Cascade order:
// strip reasoning sidecar, direct decode, fenced block, balanced-brace
// scan. The decoder takes the first complete JSON object and ignores
// trailing bytes; the schema check is the only strict stage.
func (e *Extractor) Extract(raw string, schema Schema) (*Result, error) {
	e.bump(func(s *Stats) { s.Total++ })

	text := StripReasoning(raw)
	if text == "" {
		return e.fail(&ParseError{Step: StepLocate, Detail: "empty completion"})
	}

	res, perr := e.locateAndDecode(text)
	if perr != nil {
		return e.fail(perr)
	}

	if err := schema.Validate(res.Object); err != nil {
		return e.fail(&ParseError{Step: StepSchema, Detail: err.Error()})
	}

	if res.Trailing != "" {
		res.Warnings = append(res.Warnings, "trailing text after object ignored")
		e.log.Debug("ignored trailing text after JSON object",
			zap.String("method", string(res.Method)),
			zap.Int("trailing_bytes", len(res.Trailing)))
	}

	e.bump(func(s *Stats) {
		switch res.Method {
		case MethodDirect:
			s.Direct++
		case MethodFenced:
			s.Fenced++
		case MethodScanned:
			s.Scanned++
		}
	})

	return res, nil
}

// locateAndDecode finds the object and decodes it, reporting the branch
// that produced it.
func (e *Extractor) locateAndDecode(text string) (*Result, *ParseError) {
	// Direct: the completion is the object, possibly with trailing prose.
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		trimmed := strings.TrimSpace(text)
		if obj, trailing, err := decodeFirstObject(trimmed); err == nil {
			return &Result{Object: obj, Method: MethodDirect, Trailing: trailing}, nil
		}
	}

	// Fenced: the object lives inside a markdown code fence.
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		body := m[1]
		if idx := strings.Index(body, "{"); idx >= 0 {
			if obj, trailing, err := decodeFirstObject(body[idx:]); err == nil {
				return &Result{Object: obj, Method: MethodFenced, Trailing: trailing}, nil
			}
		}
	}

	// Scanned: first balanced top-level object anywhere in the text.
	if start := firstObjectStart(text); start >= 0 {
		obj, trailing, err := decodeFirstObject(text[start:])
		if err != nil {
			return nil, &ParseError{Step: StepDecode, Detail: err.Error()}
		}
		return &Result{Object: obj, Method: MethodScanned, Trailing: trailing}, nil
	}

	if strings.Contains(text, "{") {
		return nil, &ParseError{Step: StepDecode, Detail: "unbalanced object"}
	}
	return nil, &ParseError{Step: StepLocate, Detail: "no JSON object in completion"}
}

// decodeFirstObject decodes the first JSON object at the head of s and
// returns whatever followed it. The decoder must not require the object
// to be the entire string.
func decodeFirstObject(s string) (map[string]any, string, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, "", err
	}
	trailing := strings.TrimSpace(s[dec.InputOffset():])
	return obj, trailing, nil
}

// Stats returns a snapshot of cascade counters.
func (e *Extractor) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Extractor) bump(f func(*Stats)) {
	e.mu.Lock()
	f(&e.stats)
	e.mu.Unlock()
}

func (e *Extractor) fail(perr *ParseError) (*Result, error) {
	e.bump(func(s *Stats) { s.Failures++ })
	e.log.Debug("extraction failed", zap.String("step", string(perr.Step)), zap.String("detail", perr.Detail))
	return nil, perr
}

// ===== CONVENIENCE HELPERS =====

// StringField returns obj[key] as a trimmed string when present and
// string-typed, else "".
func StringField(obj map[string]any, key string) string {
	if v, ok := obj[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// StringList returns obj[key] as a []string, keeping only string
// elements. A scalar string value becomes a one-element list.
func StringList(obj map[string]any, key string) []string {
	switch v := obj[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{strings.TrimSpace(v)}
	}
	return nil
}

// MapField returns obj[key] as a map when present and map-typed.
func MapField(obj map[string]any, key string) map[string]any {
	if v, ok := obj[key].(map[string]any); ok {
		return v
	}
	return nil
}

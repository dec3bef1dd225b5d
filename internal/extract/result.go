package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"rechnungen/internal/core"
)

// Status is the outcome of extracting one field.
type Status int

const (
	// StatusFailed means the key was missing or its value had the wrong shape.
	StatusFailed Status = iota
	// StatusAbsent means the service explicitly reported no value.
	StatusAbsent
	// StatusPresent means a usable value was extracted.
	StatusPresent
)

func (s Status) String() string {
	switch s {
	case StatusPresent:
		return "present"
	case StatusAbsent:
		return "absent"
	default:
		return "failed"
	}
}

// Result carries one Status per schema field plus the present values.
type Result struct {
	values core.Fields
	status map[core.Field]Status
	order  []core.Field
}

// Status returns the outcome for name. Fields outside the schema report failed.
func (r Result) Status(name core.Field) Status {
	if s, ok := r.status[name]; ok {
		return s
	}
	return StatusFailed
}

// Values returns the present values. Absent and failed fields are nil.
func (r Result) Values() core.Fields {
	return r.values.Clone()
}

func (r Result) Present() []core.Field { return r.with(StatusPresent) }
func (r Result) Absent() []core.Field  { return r.with(StatusAbsent) }
func (r Result) Failed() []core.Field  { return r.with(StatusFailed) }

// IsPartial reports whether at least one field failed.
func (r Result) IsPartial() bool {
	return len(r.Failed()) > 0
}

// Prefill returns the form defaults and the fields the form should flag for review.
func (r Result) Prefill() (core.Fields, []core.Field) {
	return r.Values(), r.Failed()
}

func (r Result) with(status Status) []core.Field {
	var out []core.Field
	for _, name := range r.order {
		if r.status[name] == status {
			out = append(out, name)
		}
	}
	return out
}

// ParseResult maps a raw service response onto the schema. The whole call
// fails only when the body is not a JSON object; per-field problems are
// recorded as StatusFailed.
func ParseResult(schema Schema, raw []byte) (Result, error) {
	clean := cleanModelJSON(string(raw))
	if !strings.HasPrefix(clean, "{") {
		return Result{}, &Failure{Reason: "response is not a JSON object"}
	}
	obj := map[string]json.RawMessage{}
	dec := json.NewDecoder(strings.NewReader(clean))
	if err := dec.Decode(&obj); err != nil {
		return Result{}, &Failure{Reason: "unparseable response", Err: err}
	}

	res := Result{
		status: make(map[core.Field]Status, len(schema.Fields)),
		order:  schema.Names(),
	}
	for _, spec := range schema.Fields {
		res.status[spec.Name] = res.decodeField(spec, obj)
	}
	return res, nil
}

func (r *Result) decodeField(spec FieldSpec, obj map[string]json.RawMessage) Status {
	raw, ok := obj[string(spec.Name)]
	if !ok {
		return StatusFailed
	}
	raw = bytes.TrimSpace(raw)
	if string(raw) == "null" || string(raw) == `""` {
		return StatusAbsent
	}
	if !shapeMatches(spec.Type, raw) {
		return StatusFailed
	}
	var probe core.Fields
	if err := probe.UnmarshalFieldValue(spec.Name, raw); err != nil {
		return StatusFailed
	}
	if len(spec.Enum) > 0 && spec.Name == core.FieldCategory {
		if probe.Category == nil || !slices.Contains(spec.Enum, string(*probe.Category)) {
			return StatusFailed
		}
	}
	r.values = r.values.Apply(core.Patch{Set: probe})
	return StatusPresent
}

// shapeMatches rejects values of the wrong JSON kind. Numbers may arrive as
// numeric strings, which Money accepts.
func shapeMatches(t FieldType, raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	switch t {
	case TypeBoolean:
		return string(raw) == "true" || string(raw) == "false"
	case TypeNumber:
		return raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') || raw[0] == '"'
	case TypeString, TypeDate:
		return raw[0] == '"' || raw[0] == '{'
	}
	return false
}

// cleanModelJSON strips Markdown fences and surrounding prose that models
// sometimes add despite being asked for raw JSON.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

// Failure is a wholesale extraction failure: the service could not be reached,
// refused the request or answered with something that is not a JSON object.
type Failure struct {
	Reason string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return "extraction failed: " + f.Reason
	}
	return fmt.Sprintf("extraction failed: %s: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

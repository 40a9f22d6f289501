// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package schema validates document node properties against declarative
// rule sets. A rule describes the type, bounds and mutability of one value;
// a Schema maps top-level property names to rules.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Type names the kind of value a rule accepts.
type Type string

// Rule types.
const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeEnum    Type = "enum"
	TypeHash    Type = "hash"
	TypeArray   Type = "array"
	TypeAny     Type = "any"
)

// Rule constrains a single value.
type Rule struct {
	Type     Type
	Nullable bool
	Mutable  bool
	// Trim removes surrounding whitespace from strings before length checks.
	Trim bool

	Min, Max                 *float64
	MinExcluded, MaxExcluded *float64
	// MinLength and MaxLength bound string rune counts and array lengths.
	MinLength, MaxLength *int
	Length               *int

	Items      []string // enum values
	Item       *Rule    // array element rule
	Properties map[string]*Rule
	Values     *Rule // rule for every value of a free-form hash
	Keys       *Rule // rule for every key of a free-form hash
}

// Schema maps property names to rules.
type Schema map[string]*Rule

// Float returns a pointer to v, for bounds.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for lengths.
func Int(v int) *int { return &v }

// Vec3 returns a mutable hash rule with numeric x, y, z.
func Vec3() *Rule {
	return &Rule{Type: TypeHash, Mutable: true, Properties: map[string]*Rule{
		"x": {Type: TypeNumber, Mutable: true},
		"y": {Type: TypeNumber, Mutable: true},
		"z": {Type: TypeNumber, Mutable: true},
	}}
}

// Quat returns a mutable hash rule with numeric x, y, z, w.
func Quat() *Rule {
	r := Vec3()
	r.Properties["w"] = &Rule{Type: TypeNumber, Mutable: true}
	return r
}

// Validate checks every rule of the schema against props and returns a
// normalized copy. Keys absent from the schema are rejected.
func (s Schema) Validate(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s))
	for _, key := range sortedKeys(props) {
		if _, ok := s[key]; !ok {
			return nil, violation(key, nil, props[key], "unknown property")
		}
	}
	for _, key := range sortedRuleKeys(s) {
		v, err := s[key].check(key, props[key])
		if err != nil {
			return nil, err
		}
		if v != nil || hasKey(props, key) {
			out[key] = v
		}
	}
	return out, nil
}

// Rule resolves the rule for a dotted path such as "position.x".
func (s Schema) Rule(path string) (*Rule, error) {
	parts := strings.Split(path, ".")
	rule, ok := s[parts[0]]
	if !ok {
		return nil, violation(path, nil, nil, "unknown property")
	}
	for _, part := range parts[1:] {
		next := rule.child(part)
		if next == nil {
			return nil, violation(path, rule, nil, "unknown property")
		}
		rule = next
	}
	return rule, nil
}

// Check validates a value destined for the dotted path and returns the
// normalized value. The leaf rule must be mutable.
func (s Schema) Check(path string, value any) (any, error) {
	rule, err := s.Rule(path)
	if err != nil {
		return nil, err
	}
	if !rule.Mutable {
		return nil, violation(path, rule, value, "property is immutable")
	}
	return rule.check(path, value)
}

// CheckValue validates a value against the rule for path regardless of
// mutability.
func (s Schema) CheckValue(path string, value any) (any, error) {
	rule, err := s.Rule(path)
	if err != nil {
		return nil, err
	}
	return rule.check(path, value)
}

// Check validates a single value against the rule.
func (r *Rule) Check(value any) (any, error) {
	return r.check("", value)
}

func (r *Rule) child(key string) *Rule {
	if r.Type != TypeHash {
		return nil
	}
	if r.Properties != nil {
		return r.Properties[key]
	}
	return r.Values
}

func (r *Rule) check(path string, value any) (any, error) {
	if value == nil {
		if r.Nullable || r.Type == TypeAny {
			return nil, nil
		}
		return nil, violation(path, r, value, fmt.Sprintf("expected %s, got null", r.Type))
	}

	switch r.Type {
	case TypeString:
		return r.checkString(path, value)
	case TypeNumber, TypeInteger:
		return r.checkNumber(path, value)
	case TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, violation(path, r, value, "expected boolean")
		}
		return b, nil
	case TypeEnum:
		s, ok := value.(string)
		if !ok {
			return nil, violation(path, r, value, "expected string")
		}
		for _, item := range r.Items {
			if s == item {
				return s, nil
			}
		}
		return nil, violation(path, r, value, fmt.Sprintf("must be one of %s", strings.Join(r.Items, ", ")))
	case TypeHash:
		return r.checkHash(path, value)
	case TypeArray:
		return r.checkArray(path, value)
	case TypeAny:
		return value, nil
	default:
		return nil, violation(path, r, value, fmt.Sprintf("unsupported rule type %q", r.Type))
	}
}

func (r *Rule) checkString(path string, value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, violation(path, r, value, "expected string")
	}
	if r.Trim {
		s = strings.TrimSpace(s)
	}
	if !utf8.ValidString(s) {
		return nil, violation(path, r, value, "must be valid UTF-8")
	}
	n := utf8.RuneCountInString(s)
	if r.MinLength != nil && n < *r.MinLength {
		return nil, violation(path, r, value, fmt.Sprintf("must be at least %d characters", *r.MinLength))
	}
	if r.MaxLength != nil && n > *r.MaxLength {
		return nil, violation(path, r, value, fmt.Sprintf("must be at most %d characters", *r.MaxLength))
	}
	if r.Length != nil && n != *r.Length {
		return nil, violation(path, r, value, fmt.Sprintf("must be exactly %d characters", *r.Length))
	}
	return s, nil
}

func (r *Rule) checkNumber(path string, value any) (any, error) {
	f, ok := toFloat(value)
	if !ok {
		return nil, violation(path, r, value, "expected "+string(r.Type))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, violation(path, r, value, "must be finite")
	}
	if r.Type == TypeInteger && f != math.Trunc(f) {
		return nil, violation(path, r, value, "expected integer")
	}
	if r.Min != nil && f < *r.Min {
		return nil, violation(path, r, value, fmt.Sprintf("must be >= %v", *r.Min))
	}
	if r.Max != nil && f > *r.Max {
		return nil, violation(path, r, value, fmt.Sprintf("must be <= %v", *r.Max))
	}
	if r.MinExcluded != nil && f <= *r.MinExcluded {
		return nil, violation(path, r, value, fmt.Sprintf("must be > %v", *r.MinExcluded))
	}
	if r.MaxExcluded != nil && f >= *r.MaxExcluded {
		return nil, violation(path, r, value, fmt.Sprintf("must be < %v", *r.MaxExcluded))
	}
	return f, nil
}

func (r *Rule) checkHash(path string, value any) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, violation(path, r, value, "expected hash")
	}
	out := make(map[string]any, len(m))

	if r.Properties != nil {
		for _, key := range sortedKeys(m) {
			if _, ok := r.Properties[key]; !ok {
				return nil, violation(join(path, key), r, m[key], "unknown property")
			}
		}
		for _, key := range sortedRuleKeys(r.Properties) {
			v, err := r.Properties[key].check(join(path, key), m[key])
			if err != nil {
				return nil, err
			}
			if v != nil || hasKey(m, key) {
				out[key] = v
			}
		}
		return out, nil
	}

	for _, key := range sortedKeys(m) {
		if r.Keys != nil {
			if _, err := r.Keys.check(join(path, key), key); err != nil {
				return nil, err
			}
		}
		v := m[key]
		if r.Values != nil {
			var err error
			if v, err = r.Values.check(join(path, key), v); err != nil {
				return nil, err
			}
		}
		out[key] = v
	}
	return out, nil
}

func (r *Rule) checkArray(path string, value any) (any, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, violation(path, r, value, "expected array")
	}
	if r.Length != nil && len(items) != *r.Length {
		return nil, violation(path, r, value, fmt.Sprintf("must have exactly %d items", *r.Length))
	}
	if r.MinLength != nil && len(items) < *r.MinLength {
		return nil, violation(path, r, value, fmt.Sprintf("must have at least %d items", *r.MinLength))
	}
	if r.MaxLength != nil && len(items) > *r.MaxLength {
		return nil, violation(path, r, value, fmt.Sprintf("must have at most %d items", *r.MaxLength))
	}
	out := make([]any, len(items))
	for i, item := range items {
		if r.Item == nil {
			out[i] = item
			continue
		}
		v, err := r.Item.check(fmt.Sprintf("%s[%d]", path, i), item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRuleKeys(m map[string]*Rule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

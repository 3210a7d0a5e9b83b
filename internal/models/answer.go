package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Answer holds either a single text value or a set of choices (checkbox).
// The zero value is an empty single answer.
type Answer struct {
	multi  bool
	text   string
	values []string
}

// Single builds a one-value answer.
func Single(text string) Answer { return Answer{text: text} }

// Multi builds a multi-choice answer. Duplicates are dropped, first occurrence wins.
func Multi(values ...string) Answer {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return Answer{multi: true, values: out}
}

func (a Answer) IsMulti() bool { return a.multi }

// Text is the single value, or the choices joined by ", ".
func (a Answer) Text() string {
	if a.multi {
		return strings.Join(a.values, ", ")
	}
	return a.text
}

func (a Answer) Values() []string {
	if a.multi {
		return append([]string(nil), a.values...)
	}
	if a.text == "" {
		return nil
	}
	return []string{a.text}
}

// Empty reports whether the answer counts as unanswered.
func (a Answer) Empty() bool {
	if a.multi {
		return len(a.values) == 0
	}
	return strings.TrimSpace(a.text) == ""
}

func (a Answer) Equal(b Answer) bool {
	if a.multi != b.multi {
		return false
	}
	if !a.multi {
		return a.text == b.text
	}
	if len(a.values) != len(b.values) {
		return false
	}
	for i := range a.values {
		if a.values[i] != b.values[i] {
			return false
		}
	}
	return true
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.multi {
		vals := a.values
		if vals == nil {
			vals = []string{}
		}
		return json.Marshal(vals)
	}
	return json.Marshal(a.text)
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = Answer{}
		return nil
	case b[0] == '[':
		var vals []string
		if err := json.Unmarshal(b, &vals); err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		*a = Multi(vals...)
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		*a = Single(s)
		return nil
	}
	return fmt.Errorf("answer: expected string or array, got %s", string(b))
}

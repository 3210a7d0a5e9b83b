package models

import (
	"encoding/json"
	"testing"
)

func TestMultiDropsDuplicates(t *testing.T) {
	a := Multi("A", "B", "A", "C")
	got := a.Values()
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("values len got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("values[%d] got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAnswerJSONShapes(t *testing.T) {
	var r struct {
		A Answer `json:"a"`
		B Answer `json:"b"`
		C Answer `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":"hello","b":["x","y"],"c":null}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.A.IsMulti() || r.A.Text() != "hello" {
		t.Fatalf("a got %+v, want single hello", r.A)
	}
	if !r.B.IsMulti() || r.B.Text() != "x, y" {
		t.Fatalf("b got %q, want multi x, y", r.B.Text())
	}
	if !r.C.Empty() {
		t.Fatalf("c should be empty")
	}
	out, err := json.Marshal(Multi())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "[]" {
		t.Fatalf("empty multi got %s, want []", out)
	}
	if err := json.Unmarshal([]byte(`{"a":12}`), &r); err == nil {
		t.Fatalf("expected error for numeric answer")
	}
}

func TestAnswerEmpty(t *testing.T) {
	cases := []struct {
		a    Answer
		want bool
	}{
		{Single(""), true},
		{Single("   "), true},
		{Single("x"), false},
		{Multi(), true},
		{Multi("a"), false},
		{Answer{}, true},
	}
	for i, c := range cases {
		if got := c.a.Empty(); got != c.want {
			t.Fatalf("case %d: got %v, want %v", i, got, c.want)
		}
	}
}

func TestUserPublicClearsSecrets(t *testing.T) {
	u := &User{ID: "u1", Email: "a@x.io", Password: "secret", PassHash: []byte("h")}
	p := u.Public()
	if p.Password != "" || p.PassHash != nil {
		t.Fatalf("public projection leaked credentials: %+v", p)
	}
	if u.Password != "secret" {
		t.Fatalf("original user mutated")
	}
}

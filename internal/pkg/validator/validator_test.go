package validator

import (
	"testing"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidResourceID(t *testing.T) {
	valid := []string{"board-1", "item_42", "0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", "A"}
	invalid := []string{"", "board 1", "item/42", "../etc", strings64() + "x"}
	for _, id := range valid {
		if !IsValidResourceID(id) {
			t.Errorf("IsValidResourceID(%q) = false, want true", id)
		}
	}
	for _, id := range invalid {
		if IsValidResourceID(id) {
			t.Errorf("IsValidResourceID(%q) = true, want false", id)
		}
	}
}

func strings64() string {
	b := make([]byte, 64)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestIsValidJSON(t *testing.T) {
	valid := []string{`"done"`, `42`, `{"status":"approved"}`, `null`}
	invalid := []string{``, `{`, `done`, `{"a":1}{"b":2}`}
	for _, s := range valid {
		if !IsValidJSON([]byte(s)) {
			t.Errorf("IsValidJSON(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsValidJSON([]byte(s)) {
			t.Errorf("IsValidJSON(%q) = true, want false", s)
		}
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "item_id", Message: "invalid"},
		{Field: "value", Message: "required"},
	}
	got := errs.Error()
	want := "item_id: invalid; value: required"
	if got != want {
		t.Errorf("ValidationErrors.Error() = %q, want %q", got, want)
	}
}

func TestValidationErrors_ToMap(t *testing.T) {
	errs := ValidationErrors{
		{Field: "item_id", Message: "invalid"},
		{Field: "value", Message: "required"},
	}
	got := errs.ToMap()
	want := map[string]string{"item_id": "invalid", "value": "required"}
	if len(got) != len(want) {
		t.Errorf("ValidationErrors.ToMap() length = %d, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("ValidationErrors.ToMap()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

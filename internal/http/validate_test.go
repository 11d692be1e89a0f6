package httpapi

import (
	"strings"
	"testing"

	"github.com/fairyhunter13/inventory-manager/internal/model"
)

func mustDoc(t *testing.T, s string) *model.Document {
	t.Helper()
	v, err := model.Decode([]byte(s))
	if err != nil {
		t.Fatalf("decode %s: %v", s, err)
	}
	d, ok := v.(*model.Document)
	if !ok {
		t.Fatalf("not an object: %s", s)
	}
	return d
}

func TestValidator(t *testing.T) {
	v, err := NewValidator(model.ResourceProducts, model.ResourceCategories)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	cases := []struct {
		resource string
		body     string
		partial  bool
		wantErr  string
	}{
		{"products", `{"name":"a","price":"1.50"}`, false, "/price"},
		{"products", `{"name":"a","price":0,"quantity":0,"extra":{"x":1}}`, false, ""},
		{"products", `{"name":"a","price":12345678901234567890.5}`, false, ""},
		{"products", `{"name":"a","price":-1}`, false, "price must be >= 0"},
		{"products", `{}`, false, "name"},
		{"products", `{}`, true, ""},
		{"products", `{"quantity":"3"}`, true, "/quantity"},
		{"categories", `{"name":"c","description":5}`, false, "/description"},
		{"categories", `{"description":"d"}`, true, ""},
	}
	for _, tc := range cases {
		err := v.Validate(tc.resource, mustDoc(t, tc.body), tc.partial)
		if tc.wantErr == "" {
			if err != nil {
				t.Fatalf("%s %s: unexpected error %v", tc.resource, tc.body, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
			t.Fatalf("%s %s: expected error containing %q, got %v", tc.resource, tc.body, tc.wantErr, err)
		}
	}
}

func TestValidatorUnknownResource(t *testing.T) {
	if _, err := NewValidator("orders"); err == nil {
		t.Fatalf("expected error for missing schema")
	}
}

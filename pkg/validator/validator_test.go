package validator

import (
	"strings"
	"testing"
)

type slugRequest struct {
	Slug string `validate:"required,slug"`
}

func TestSlugRule(t *testing.T) {
	cases := map[string]bool{
		"go-101":       true,
		"intro":        true,
		"Go-101":       false,
		"double--dash": false,
		"-leading":     false,
		"with space":   false,
	}
	for slug, valid := range cases {
		err := Validate(slugRequest{Slug: slug})
		if (err == nil) != valid {
			t.Fatalf("slug %q: expected valid=%v, got err %v", slug, valid, err)
		}
	}
}

func TestDescribe(t *testing.T) {
	err := Validate(slugRequest{Slug: "Not_A_Slug"})
	if err == nil {
		t.Fatal("expected invalid slug to be rejected")
	}
	if msg := Describe(err); !strings.Contains(msg, "Slug failed slug") {
		t.Fatalf("unexpected description %q", msg)
	}
}

func TestIsYAMLContentType(t *testing.T) {
	if !IsYAMLContentType("application/x-yaml; charset=utf-8") {
		t.Fatal("expected yaml content type to be detected")
	}
	if IsYAMLContentType("application/json") {
		t.Fatal("expected json not to be treated as yaml")
	}
}

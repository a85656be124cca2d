package validator

import "testing"

type contactForm struct {
	Name  string `json:"name" validate:"notblank"`
	Email string `json:"email" validate:"required,email"`
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	v := New()
	err := v.Struct(contactForm{Name: "   ", Email: "nope"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	fields := FieldErrors(err)
	if fields["name"] != "notblank" {
		t.Fatalf("expected notblank on name, got %v", fields)
	}
	if fields["email"] != "email" {
		t.Fatalf("expected email tag on email, got %v", fields)
	}
}

func TestValidStructPasses(t *testing.T) {
	if err := New().Struct(contactForm{Name: "Ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{NotFound("x"), http.StatusNotFound},
		{Validation("x"), http.StatusBadRequest},
		{BadRequest("x"), http.StatusBadRequest},
		{Conflict("x"), http.StatusConflict},
		{Forbidden("x"), http.StatusForbidden},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Internal("x"), http.StatusInternalServerError},
		{&Error{Message: "no kind"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.err.HTTPStatus(); got != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.err.Kind, tt.want, got)
		}
	}
}

func TestIsFollowsWrappedChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("save lead: %w", Wrap(KindInternal, "failed to save lead", cause))

	if !Is(err, KindInternal) {
		t.Fatal("expected internal kind through fmt wrapping")
	}
	if Is(err, KindConflict) {
		t.Fatal("unexpected conflict kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to stay reachable")
	}
	if Is(nil, KindUnknown) {
		t.Fatal("nil error must not match any kind")
	}
	if KindOf(cause) != KindUnknown {
		t.Fatal("plain errors have no kind")
	}
}

package apperr

import (
	"errors"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := NotFoundf("queue item %s", "a1")
	if KindOf(err) != NotFound {
		t.Fatalf("expected NotFound, got %s", KindOf(err))
	}

	wrapped := Internalf(errors.New("boom"), "write failed")
	if KindOf(wrapped) != Internal {
		t.Fatalf("expected Internal, got %s", KindOf(wrapped))
	}

	if KindOf(errors.New("plain")) != Internal {
		t.Fatal("plain errors should default to Internal")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("database is locked")
	err := Busy(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected Busy error to unwrap to cause")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:   http.StatusBadRequest,
		NotFound:     http.StatusNotFound,
		Conflict:     http.StatusConflict,
		Gone:         http.StatusGone,
		Unauthorized: http.StatusUnauthorized,
		StoreBusy:    http.StatusServiceUnavailable,
		Internal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}

package queryfx

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// ==============================
// Error taxonomy tests
// ==============================

func TestServiceErrorMessage(t *testing.T) {
	withName := &ServiceError{CodeName: "NOT_FOUND", Code: 404, Message: "no such user"}
	if got := withName.Error(); got != "NOT_FOUND (code 404): no such user" {
		t.Fatalf("unexpected message %q", got)
	}
	bare := &ServiceError{Code: 500, Message: "boom"}
	if got := bare.Error(); got != "code 500: boom" {
		t.Fatalf("unexpected message %q", got)
	}
}

// TestAsServiceError verifies the predicate sees through wrapping, including
// joined errors, and rejects plain failures.
func TestAsServiceError(t *testing.T) {
	se := &ServiceError{Code: 409, Message: "conflict"}

	t.Run("direct", func(t *testing.T) {
		got, ok := AsServiceError(se)
		if !ok || got.Code != 409 {
			t.Fatalf("expected the service error, got %v ok=%v", got, ok)
		}
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("call users.update: %w", se)
		if _, ok := AsServiceError(err); !ok {
			t.Fatalf("expected unwrap through %%w")
		}
	})

	t.Run("joined", func(t *testing.T) {
		err := errors.Join(se, errors.New("rollback also failed"))
		got, ok := AsServiceError(err)
		if !ok || got.Code != 409 {
			t.Fatalf("expected unwrap through join, got %v ok=%v", got, ok)
		}
	})

	t.Run("plain", func(t *testing.T) {
		if _, ok := AsServiceError(errors.New("connection reset")); ok {
			t.Fatalf("plain errors are not service errors")
		}
		if IsServiceError(nil) {
			t.Fatalf("nil is not a service error")
		}
	})
}

func TestIsServiceCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &ServiceError{Code: 404, Message: "gone"})
	if !IsServiceCode(err, 404) {
		t.Fatalf("expected code 404 to match")
	}
	if IsServiceCode(err, 500) {
		t.Fatalf("code 500 must not match")
	}
	if IsServiceCode(errors.New("x"), 404) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestEffectErrorUnwrap(t *testing.T) {
	cause := errors.New("store offline")
	ee := &EffectError{Phase: PhaseCommit, Key: `["users.get",{"id":1}]`, Err: cause}

	if !errors.Is(ee, cause) {
		t.Fatalf("expected the cause to unwrap")
	}
	msg := ee.Error()
	if !strings.Contains(msg, "commit") || !strings.Contains(msg, `["users.get",{"id":1}]`) {
		t.Fatalf("message should name phase and key, got %q", msg)
	}
}

package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goccy/go-json"
)

func TestOperations_JSON_Unmarshalling(t *testing.T) {

	type Object struct {
		Operations []Operation `json:"operations"`
	}
	var object Object
	jsonRead := `{"operations":["create","read","delete","list"]}`
	err := json.Unmarshal([]byte(jsonRead), &object)
	if err != nil {
		t.Fatal(err)
	}
	if len(object.Operations) != 4 {
		t.Fatalf("expected 4 operations, got %d", len(object.Operations))
	}

	jsonRead = `{"operations":["invalid"]}`
	err = json.Unmarshal([]byte(jsonRead), &object)
	if err == nil {
		t.Fatal("invalid operation accepted")
	}
}

func TestError_IsMatchesKind(t *testing.T) {
	wrapped := fmt.Errorf("create user: %w", ErrUsernameTaken.WithMessage("username alice is taken"))
	if !errors.Is(wrapped, ErrUsernameTaken) {
		t.Fatal("wrapped error does not match its kind")
	}
	if errors.Is(wrapped, ErrEmailTaken) {
		t.Fatal("wrapped error matches a different kind")
	}
	if CategoryOf(wrapped) != CategoryConflict {
		t.Fatalf("expected conflict category, got %s", CategoryOf(wrapped))
	}
}

func TestInternal(t *testing.T) {
	if Internal(nil) != nil {
		t.Fatal("nil error must stay nil")
	}
	cause := errors.New("connection reset")
	err := Internal(cause)
	if CategoryOf(err) != CategoryInternal {
		t.Fatalf("expected internal category, got %s", CategoryOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatal("internal error does not unwrap to its cause")
	}

	// typed errors pass through unchanged
	if Internal(ErrPlantNotFound) != ErrPlantNotFound {
		t.Fatal("typed error was rewrapped")
	}
	if CategoryOf(cause) != CategoryInternal {
		t.Fatal("plain errors must be internal")
	}
}

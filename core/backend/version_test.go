package backend

import (
	"testing"
)

// TestVersion verifies that the /version endpoint works without a token
func TestVersion(t *testing.T) {
	tb := newTestBackend(t)

	var version VersionResponse
	_, err := tb.client.RawGet("/version", &version)
	if err != nil {
		t.Fatal(err)
	}
	if version.Version != "unset" {
		t.Fatalf("Expecting 'unset' version by default, got %s", version.Version)
	}

	Version = "another version"
	defer func() { Version = "unset" }()

	_, err = tb.client.RawGet("/version", &version)
	if err != nil {
		t.Fatal(err)
	}
	if version.Version != "another version" {
		t.Fatalf("Expecting 'another version', got %s", version.Version)
	}
}

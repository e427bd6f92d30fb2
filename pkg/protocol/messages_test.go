// ABOUTME: Tests for bridge protocol message types
// ABOUTME: Verifies the JSON field names hosts depend on
package protocol

import (
	"encoding/json"
	"testing"
)

func TestRequestFields(t *testing.T) {
	var req Request
	if err := json.Unmarshal([]byte(`{"seq":7,"fn":"pos","args":["a","1","2","3"]}`), &req); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if req.Seq != 7 || req.Fn != "pos" || len(req.Args) != 4 || req.Args[3] != "3" {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestResponseOmitsEmptyError(t *testing.T) {
	data, err := json.Marshal(Response{Type: TypeResponse, Seq: 1, Result: "[a,b]"})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if got, want := string(data), `{"type":"response","seq":1,"result":"[a,b]"}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCallError(t *testing.T) {
	err := &CallError{Fn: "create", Message: "not found"}
	if got, want := err.Error(), "create: not found"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

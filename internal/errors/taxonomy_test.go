package errors

import (
	stdErrors "errors"
	"testing"
)

func TestPolicyErrorClassification(t *testing.T) {
	err := NewPolicyError("publish.claim", "already_live", stdErrors.New("stream foo is live"))
	if !IsPolicyError(err, "already_live") {
		t.Fatalf("expected already_live classification")
	}
	if IsPolicyError(err, "unknown_account") {
		t.Fatalf("code mismatch should not classify")
	}
	if !IsPolicyError(err, "") {
		t.Fatalf("empty code should match any policy error")
	}
	if IsProtocolError(err) {
		t.Fatalf("policy error must not classify as protocol error")
	}
}

func TestResourceErrorClassification(t *testing.T) {
	err := NewResourceError("splitter.write", stdErrors.New("channel full"))
	if !IsResourceError(err) {
		t.Fatalf("expected resource classification")
	}
	if IsPolicyError(err, "") {
		t.Fatalf("resource error must not classify as policy error")
	}
}

func TestInvariantErrorClassification(t *testing.T) {
	err := NewInvariantError("mux.write_media_segment", stdErrors.New("unknown track id 9"))
	if !IsInvariantError(err) {
		t.Fatalf("expected invariant classification")
	}
	if s := err.Error(); s == "" {
		t.Fatalf("expected non-empty error string")
	}
}

package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeInvalidTransition, status: http.StatusBadRequest, publicMsg: "status transition not allowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestSentinelMatchesOnReason(t *testing.T) {
	sentinel := Sentinel(CodeNotFound, "order_not_found", "order not found")

	derived := sentinel.Derive("order abc not found").WithDetails(map[string]any{"order_id": "abc"})
	if !stdErrors.Is(derived, sentinel) {
		t.Fatalf("derived error should match sentinel")
	}
	if derived.Code() != CodeNotFound || derived.Reason() != "order_not_found" {
		t.Fatalf("derive lost code or reason: %s %s", derived.Code(), derived.Reason())
	}

	wrapped := fmt.Errorf("load: %w", derived)
	if !stdErrors.Is(wrapped, sentinel) {
		t.Fatalf("wrapped error should still match sentinel")
	}

	other := Sentinel(CodeNotFound, "delivery_not_found", "delivery not found")
	if stdErrors.Is(derived, other) {
		t.Fatalf("different reasons must not match")
	}

	plain := New(CodeNotFound, "missing")
	if stdErrors.Is(plain, New(CodeNotFound, "missing")) {
		t.Fatalf("errors without reason must not match by value")
	}
}

func TestSentinelIsNotMutated(t *testing.T) {
	sentinel := Sentinel(CodeConflict, "order_locked", "order locked")

	detailed := sentinel.WithDetails(map[string]any{"order_id": "abc"})
	if sentinel.Details() != nil {
		t.Fatalf("sentinel details must stay nil, got %v", sentinel.Details())
	}
	if detailed.Details() == nil || !stdErrors.Is(detailed, sentinel) {
		t.Fatalf("copy should carry details and match sentinel")
	}

	renamed := sentinel.WithReason("order_busy")
	if sentinel.Reason() != "order_locked" || renamed.Reason() != "order_busy" {
		t.Fatalf("unexpected reasons %s %s", sentinel.Reason(), renamed.Reason())
	}
}

func TestWithCauseKeepsBothChains(t *testing.T) {
	inner := Sentinel(CodeInvalidTransition, "invalid_status_transition", "order transition not allowed")
	outer := Sentinel(CodeInvalidTransition, "invalid_delivery_status_transition", "delivery transition not allowed")

	err := outer.Derive("delivery blocked by order").WithCause(inner.Derive("order is delivered"))
	if !stdErrors.Is(err, outer) || !stdErrors.Is(err, inner) {
		t.Fatalf("expected both sentinels to match %v", err)
	}
	if outer.Unwrap() != nil {
		t.Fatalf("sentinel must not gain a cause")
	}
}

func TestErrorIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "payment provider unavailable")
	want := "DEPENDENCY_ERROR: payment provider unavailable: dial tcp: refused"
	if err.Error() != want {
		t.Fatalf("expected %q got %q", want, err.Error())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_deliveries_order_id", TableName: "deliveries", Message: "duplicate key"}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create delivery").WithReason("delivery_exists")

	dump := Dump(err)
	if dump.Code != CodeConflict || dump.Reason != "delivery_exists" {
		t.Fatalf("unexpected code/reason %s %s", dump.Code, dump.Reason)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "idx_deliveries_order_id" || dump.PGTable != "deliveries" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected three links in the chain, got %v", dump.Chain)
	}

	fields := dump.Fields()
	if fields["pg_code"] != "23505" || fields["error_reason"] != "delivery_exists" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty fields should be omitted: %v", fields)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}

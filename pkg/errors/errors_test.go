package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", DetailsAllowed: true},
		CodeStateConflict: {HTTPStatus: http.StatusConflict, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", Retryable: true},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), string(code))
	}

	assert.Equal(t, cases[CodeInternal], MetadataFor("SOMETHING_UNKNOWN"))
}

func TestErrorAccessors(t *testing.T) {
	e := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, e.Code())
	assert.Equal(t, "missing foo", e.Message())
	assert.Equal(t, "VALIDATION_ERROR: missing foo", e.Error())
	assert.Nil(t, e.Details())
	assert.Nil(t, e.Unwrap())

	details := map[string]any{"field": "foo"}
	assert.Same(t, e, e.WithDetails(details))
	assert.Equal(t, details, e.Details())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Empty(t, nilErr.Message())
	assert.Empty(t, nilErr.Error())
	assert.Nil(t, nilErr.WithDetails(details))
}

func TestWrapKeepsCauseReachable(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())

	outer := fmt.Errorf("handler: %w", wrapped)
	require.NotNil(t, As(outer))
	assert.Equal(t, CodeConflict, As(outer).Code())
	assert.Nil(t, As(nil))
	assert.Nil(t, As(cause))
}

func TestHasCodeWalksNestedErrors(t *testing.T) {
	sentinel := stdErrors.New("step skipped")
	inner := Wrap(CodeValidation, sentinel, "step 4 requested while current step is 2")
	outer := Wrap(CodeDependency, inner, "advance step")

	assert.True(t, HasCode(outer, CodeDependency))
	assert.True(t, HasCode(outer, CodeValidation))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(sentinel, CodeValidation))
	assert.ErrorIs(t, outer, sentinel)
}

func TestRetryableFollowsOutermostCode(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{stdErrors.New("socket closed"), true},
		{New(CodeValidation, "step 9 out of range"), false},
		{New(CodeRateLimit, "slow down"), true},
		{Wrap(CodeDependency, stdErrors.New("timeout"), "load record"), true},
		{Wrap(CodeNotFound, New(CodeDependency, "db"), "record"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Retryable(tc.err), "%v", tc.err)
	}
}

func TestDumpCollectsChainAndCode(t *testing.T) {
	assert.Equal(t, ErrorDump{}, Dump(nil))

	d := Dump(Wrap(CodeConflict, stdErrors.New("version mismatch"), "advance step"))
	assert.Equal(t, CodeConflict, d.Code)
	assert.Equal(t, "CONFLICT: advance step", d.TopMessage)
	assert.Len(t, d.Chain, 2)
	assert.Empty(t, d.PGCode)
	assert.Empty(t, d.SQLiteCode)
}

func TestDumpExtractsPostgresDiagnostics(t *testing.T) {
	pgx := &pgconn.PgError{Code: "23505", Message: "duplicate key", ConstraintName: "payout_ledger_entries_record_key", TableName: "payout_ledger_entries"}
	d := Dump(Wrap(CodeConflict, pgx, "record payout"))
	assert.Equal(t, "23505", d.PGCode)
	assert.Equal(t, "payout_ledger_entries_record_key", d.PGConstraint)
	assert.Equal(t, "payout_ledger_entries", d.PGTable)

	pqErr := &pq.Error{Code: "23503", Message: "fk violation", Column: "seller_id", Detail: "seller missing"}
	d = Dump(fmt.Errorf("insert: %w", pqErr))
	assert.Equal(t, "23503", d.PGCode)
	assert.Equal(t, "seller_id", d.PGColumn)
	assert.Equal(t, "seller missing", d.PGDetail)
	assert.Empty(t, d.Code)
}

package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "not found", err: LeadNotFound("l1"), want: KindNotFound},
		{name: "wrapped conflict", err: fmt.Errorf("merge: %w", StaleLead("l2", "deleted")), want: KindConflict},
		{name: "invalid", err: InvalidArgument("threshold %v out of range", 1.5), want: KindInvalidArgument},
		{name: "foreign error", err: fmt.Errorf("boom"), want: KindStorageFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsNotFound(LeadNotFound("x")))
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsConflict(StaleLead("x", "modified")))
	assert.True(t, IsInvalidArgument(InvalidArgument("empty")))
	assert.True(t, IsStorageFailure(StorageFailure(fmt.Errorf("pq: down"), "failed to update lead")))
}

func TestErrorMessage(t *testing.T) {
	err := StaleLead("lead-1", "lead was deleted")
	assert.Equal(t, "stale duplicate: lead was deleted (lead lead-1)", err.Error())

	wrapped := StorageFailure(fmt.Errorf("connection reset"), "failed to delete leads")
	assert.Equal(t, "failed to delete leads: connection reset", wrapped.Error())
}

func TestToHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code int
	}{
		{name: "not found", err: LeadNotFound("l1"), code: http.StatusNotFound},
		{name: "invalid", err: InvalidArgument("duplicate list is empty"), code: http.StatusBadRequest},
		{name: "conflict", err: StaleLead("l1", "modified"), code: http.StatusConflict},
		{name: "storage", err: StorageFailure(fmt.Errorf("secret dsn"), "failed to update lead"), code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			herr := tt.err.ToHTTPError()
			require.NotNil(t, herr)
			assert.Equal(t, tt.code, httperror.GetStatusCode(herr))
			assert.NotContains(t, herr.Error(), "secret dsn")
		})
	}
}

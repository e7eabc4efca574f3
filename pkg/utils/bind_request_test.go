package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dedupeerrors "github.com/Ramsey-B/clover/pkg/errors"
	"github.com/Ramsey-B/clover/pkg/models"
)

func TestBindRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"primary_lead_id":"a","duplicate_lead_ids":["b"]}`, ""},
		{"malformed", `{"primary_lead_id":`, "invalid request body"},
		{"missing duplicates", `{"primary_lead_id":"a"}`, "DuplicateLeadIDs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			c := echo.New().NewContext(req, httptest.NewRecorder())

			got, err := BindRequest[models.MergeRequest](c)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "a", got.PrimaryLeadID)
				return
			}
			require.Error(t, err)
			assert.True(t, dedupeerrors.IsInvalidArgument(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

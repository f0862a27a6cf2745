package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_StatusAndCode(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
		code   string
	}{
		{"validation", NewValidation("bad"), http.StatusBadRequest, CodeValidation},
		{"not found", NewNotFound("order", "42"), http.StatusNotFound, CodeNotFound},
		{"conflict", NewConflict("nope"), http.StatusConflict, CodeConflict},
		{"duplicate", NewDuplicate("product", "slug", "sofa"), http.StatusConflict, CodeDuplicate},
		{"stock", NewInsufficientStock(nil), http.StatusUnprocessableEntity, CodeInsufficientStock},
		{"internal", NewInternal(errors.New("boom")), http.StatusInternalServerError, CodeInternal},
		{"unauthorized", NewUnauthorized("who"), http.StatusUnauthorized, CodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
			assert.True(t, HasCode(tt.err, tt.code))
		})
	}
}

func TestAppError_Wrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("load order: %w", NewInternal(cause))

	appErr, ok := AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, appErr.Code)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, appErr.Error(), "caused by: connection refused")

	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
	_, ok = AsAppError(errors.New("plain"))
	assert.False(t, ok)
}

func TestAppError_Predicates(t *testing.T) {
	assert.True(t, IsConflict(NewDuplicate("product", "slug", "x")))
	assert.True(t, IsConflict(NewConflict("x")))
	assert.False(t, IsConflict(NewValidation("x")))
	assert.True(t, IsNotFound(NewNotFound("invoice", 1)))
	assert.True(t, IsValidation(NewFieldValidation("qty", "must be positive")))
	assert.False(t, IsInsufficientStock(errors.New("x")))
}

func TestAppError_Details(t *testing.T) {
	err := NewFieldValidation("discount", "discount must be between 0 and 100")
	assert.Equal(t, "discount", err.Details["field"])

	nf := NewNotFound("product", 7)
	assert.Equal(t, map[string]any{"entity": "product", "id": "7"}, nf.Details)

	issues := []StockIssue{{Line: 0, ProductName: "Table", Requested: 3, Available: 1, Error: IssueInsufficientStock}}
	stock := NewInsufficientStock(issues)
	assert.Equal(t, issues, stock.StockIssues)
	assert.Equal(t, issues, stock.Details["stock_issues"])
}

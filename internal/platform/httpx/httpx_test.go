package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("get quote: %w", ErrNotFound): http.StatusNotFound,
		ErrDuplicate:                             http.StatusConflict,
		ErrConflict:                              http.StatusConflict,
		ErrValidation:                            http.StatusBadRequest,
		ErrForbidden:                             http.StatusForbidden,
		ErrUnauthorized:                          http.StatusUnauthorized,
		assert.AnError:                           http.StatusInternalServerError,
	}
	for err, want := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		assert.Equal(t, want, rr.Code, err.Error())
	}
}

func TestBindReturnsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","email":"nope"}`))
	var body sampleRequest
	err := Bind(req, &body)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	rr := httptest.NewRecorder()
	RespondError(rr, err)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "is required", problem.Fields["name"])
	assert.Equal(t, "must be a valid email", problem.Fields["email"])
}

func TestBindRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok","extra":1}`))
	var body sampleRequest
	err := Bind(req, &body)
	assert.ErrorIs(t, err, ErrValidation)
}

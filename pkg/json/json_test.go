package json

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Danwoltrs/wolthers-travel-app-sub001/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pingSchema = schema.MustCompile("ping", `{
  "type": "object",
  "required": ["name"],
  "properties": {"name": {"type": "string", "minLength": 1}}
}`)

func TestParseValidatedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"wolthers"}`))

	var got struct{ Name string }
	require.NoError(t, ParseValidatedJSON(r, pingSchema, &got))
	assert.Equal(t, "wolthers", got.Name)
}

func TestParseValidatedJSONRejectsSchemaViolation(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))

	var got struct{ Name string }
	err := ParseValidatedJSON(r, pingSchema, &got)

	var verr *schema.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestParseJSONMissingBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.ErrorIs(t, ParseJSON(r, &struct{}{}), ErrMissingBody)
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusConflict, errors.New("trip already finalized"))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"trip already finalized"}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBodyJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, readBodyJSON(req, 64, &out))
	assert.Equal(t, "a", out.Name)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, readBodyJSON(req, 64, &out))
	assert.Equal(t, "a", out.Name)

	body := `{"name":"` + strings.Repeat("x", 64) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	assert.ErrorIs(t, readBodyJSON(req, 64, &out), errBodyTooLarge)

	exact := `{"name":"bb"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(exact))
	require.NoError(t, readBodyJSON(req, int64(len(exact)), &out))
	assert.Equal(t, "bb", out.Name)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusTeapot, Fail("nope"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"nope"`)
}

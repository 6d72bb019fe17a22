package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlasherRoundTrip(t *testing.T) {
	e := echo.New()
	f := NewFlasher([]byte("test-secret-key-0123456789abcdef"), false)

	req := httptest.NewRequest(http.MethodPost, "/create", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, f.Add(e.NewContext(req, rec), FlashSuccess, "Barranco agregado exitosamente."))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec = httptest.NewRecorder()
	got := f.Pop(e.NewContext(req, rec))
	require.Len(t, got, 1)
	assert.Equal(t, Flash{Level: FlashSuccess, Message: "Barranco agregado exitosamente."}, got[0])
}

func TestFlasherPopWithoutCookie(t *testing.T) {
	e := echo.New()
	f := NewFlasher([]byte("test-secret-key-0123456789abcdef"), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, f.Pop(e.NewContext(req, httptest.NewRecorder())))
}

func TestFlasherRejectsForeignSignature(t *testing.T) {
	e := echo.New()
	writer := NewFlasher([]byte("key-one-0123456789abcdef01234567"), false)
	reader := NewFlasher([]byte("key-two-0123456789abcdef01234567"), false)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, writer.Add(e.NewContext(req, rec), FlashDanger, "x"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	assert.Empty(t, reader.Pop(e.NewContext(req, httptest.NewRecorder())))
}

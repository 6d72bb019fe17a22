package middleware

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
)

const flashSession = "barrancos"

// Flash levels, used as CSS classes by the templates.
const (
	FlashSuccess = "success"
	FlashDanger  = "danger"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Level   string
	Message string
}

func init() {
	gob.Register(Flash{})
}

// Flasher keeps flash messages in a signed session cookie.
type Flasher struct {
	store sessions.Store
}

// NewFlasher returns a Flasher whose cookies are signed with key.
// secure marks the cookie Secure; set it when serving over TLS.
func NewFlasher(key []byte, secure bool) *Flasher {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Flasher{store: store}
}

// Add queues a message for the next request.
func (f *Flasher) Add(c echo.Context, level, message string) error {
	sess, err := f.store.Get(c.Request(), flashSession)
	if err != nil && sess == nil {
		return err
	}
	sess.AddFlash(Flash{Level: level, Message: message})
	return sess.Save(c.Request(), c.Response())
}

// Pop returns and clears the queued messages. A tampered or stale cookie
// yields no messages.
func (f *Flasher) Pop(c echo.Context) []Flash {
	sess, err := f.store.Get(c.Request(), flashSession)
	if err != nil || sess == nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if fl, ok := v.(Flash); ok {
			out = append(out, fl)
		}
	}
	_ = sess.Save(c.Request(), c.Response())
	return out
}

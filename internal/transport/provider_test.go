package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTwilio(t *testing.T, h http.HandlerFunc) *TwilioProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewTwilioProvider(TwilioOpts{
		BaseURL:       srv.URL,
		AccountSID:    "AC123",
		AuthToken:     "secret",
		From:          "+14155238886",
		CountryCode:   "972",
		TimeoutMs:     500,
		FailThreshold: 2,
		OpenForMs:     60000,
	})
}

func TestTwilioSendTemplate(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+972501234567", r.PostForm.Get("To"))
		assert.Equal(t, "HX42", r.PostForm.Get("ContentSid"))

		var vars map[string]string
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("ContentVariables")), &vars))
		assert.Equal(t, map[string]string{"1": "2026-03-02", "2": "10:30"}, vars)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM999","status":"queued"}`))
	})

	sid, err := p.Send(context.Background(), Message{
		To:         "501234567",
		TemplateID: "HX42",
		Variables:  map[string]string{"1": "2026-03-02", "2": "10:30"},
	})
	require.NoError(t, err)
	assert.Equal(t, "SM999", sid)
}

func TestTwilioErrorBody(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":63016,"message":"outside the allowed window","status":400}`))
	})

	_, err := p.Send(context.Background(), Message{To: "501234567", TemplateID: "HX1"})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, 400, reqErr.Status)
	assert.Equal(t, 63016, reqErr.Code)
	assert.Contains(t, err.Error(), "outside the allowed window")
	// client errors leave the breaker closed
	assert.True(t, p.Ready())
}

func TestTwilioServerErrorsTripBreaker(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for range 2 {
		_, err := p.Send(context.Background(), Message{To: "501234567", TemplateID: "HX1"})
		require.Error(t, err)
	}
	assert.False(t, p.Ready())
	assert.Equal(t, "open", p.Breaker().State())
}

func TestTwilioTimeout(t *testing.T) {
	p := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Send(ctx, Message{To: "501234567", TemplateID: "HX1"})
	require.Error(t, err)
}

func TestTwilioRequiresCredentials(t *testing.T) {
	p := NewTwilioProvider(TwilioOpts{})
	_, err := p.Send(context.Background(), Message{To: "1", TemplateID: "HX"})
	assert.ErrorContains(t, err, "credentials")
}

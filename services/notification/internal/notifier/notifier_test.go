package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AfshinJalili/bankflow/libs/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapHTMLEscapesBody(t *testing.T) {
	html, err := WrapHTML("Welcome", "Dear <Ana>,\nAccount 100001")
	require.NoError(t, err)
	assert.Contains(t, html, "Dear &lt;Ana&gt;,")
	assert.Contains(t, html, "<h2>Welcome</h2>")
	assert.NotContains(t, html, "<Ana>")
}

func TestSendGridMailer(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := NewSendGridMailer("sg-key", srv.URL, "noreply@bank.example", "The Bank")
	require.NoError(t, mailer.SendEmail(context.Background(), "ana@example.com", "Welcome", "Dear Ana"))

	assert.Equal(t, "Bearer sg-key", auth)
	assert.Equal(t, "Welcome", got["subject"])
	from := got["from"].(map[string]any)
	assert.Equal(t, "noreply@bank.example", from["email"])
	content := got["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text/plain", content[0].(map[string]any)["type"])
	assert.Equal(t, "text/html", content[1].(map[string]any)["type"])
}

func TestSendGridMailerRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	err := NewSendGridMailer("bad", srv.URL, "noreply@bank.example", "").SendEmail(context.Background(), "ana@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestSMSGateway(t *testing.T) {
	var hits int32
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		assert.Equal(t, "Bearer sms-key", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := NewSMSGateway(srv.URL, "sms-key", "Bank", time.Second, 2, logging.Discard())
	require.NoError(t, gw.SendSMS(context.Background(), "+639171234567", "Welcome Ana"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "5xx must be retried")
	assert.Equal(t, "+639171234567", form.Get("to"))
	assert.Equal(t, "Welcome Ana", form.Get("message"))
	assert.Equal(t, "Bank", form.Get("sender"))
}

func TestSMSGatewayClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid number", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewSMSGateway(srv.URL, "", "Bank", time.Second, 2, nil).SendSMS(context.Background(), "123", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid number")
}

func TestChannelsRequireAddress(t *testing.T) {
	log := NewLogNotifier(logging.Discard())
	ch := Channels{Email: log, SMS: log}
	assert.ErrorIs(t, ch.SendEmail(context.Background(), "", "s", "b"), ErrNoAddress)
	assert.ErrorIs(t, ch.SendSMS(context.Background(), "", "m"), ErrNoAddress)
	assert.NoError(t, ch.SendEmail(context.Background(), "ana@example.com", "s", "b"))
	assert.NoError(t, ch.SendSMS(context.Background(), "+639171234567", "m"))
}

package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSender(t *testing.T) *Sender {
	t.Helper()
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)

	s, err := NewSender(Config{
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		Subscriber:      "mailto:test@lunacare.app",
		TTL:             time.Minute,
	})
	require.NoError(t, err)
	return s
}

func newTestSubscription(t *testing.T, endpoint string) Subscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)

	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return Subscription{
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func TestNewSenderRequiresKeys(t *testing.T) {
	_, err := NewSender(Config{})
	assert.ErrorIs(t, err, ErrMissingVAPIDKeys)
}

func TestSenderSend(t *testing.T) {
	var gotTTL, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTTL = r.Header.Get("TTL")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	status, err := newTestSender(t).Send(context.Background(), newTestSubscription(t, srv.URL+"/push/1"), []byte(`{"title":"Time to hydrate"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "60", gotTTL)
	assert.True(t, strings.HasPrefix(gotAuth, "vapid "))
}

func TestSenderSendGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	status, err := newTestSender(t).Send(context.Background(), newTestSubscription(t, srv.URL+"/push/2"), []byte(`{}`))
	assert.Error(t, err)
	assert.Equal(t, http.StatusGone, status)
}

package syncer_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescan/internal/config"
	"gatescan/internal/syncer"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *syncer.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := syncer.NewClient(config.SyncConfig{
		BaseURL:       srv.URL,
		APIToken:      "opaque-device-token",
		UploadTimeout: 5 * time.Second,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestUploadConfirmed(t *testing.T) {
	var gotPath, gotAuth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	})

	result := client.Upload(queuedFixture("n1"))
	assert.Equal(t, syncer.UploadConfirmed, result.Outcome)
	assert.Equal(t, "/events/democon/checkinlists/1/redeem", gotPath)
	assert.Equal(t, "Device opaque-device-token", gotAuth)
}

func TestUploadRejectedCarriesServerReason(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"error","reason":"already_redeemed","detail":"entry at 10:00"}`))
	})

	result := client.Upload(queuedFixture("n1"))
	assert.Equal(t, syncer.UploadRejected, result.Outcome)
	assert.Equal(t, "already_redeemed", result.Reason)
	assert.Equal(t, "entry at 10:00", result.Detail)
}

func TestUploadRejectedWithoutBodyFallsBackToStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	result := client.Upload(queuedFixture("n1"))
	assert.Equal(t, syncer.UploadRejected, result.Outcome)
	assert.NotEmpty(t, result.Reason)
}

func TestUploadRetryAfterHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	result := client.Upload(queuedFixture("n1"))
	assert.Equal(t, syncer.UploadRetryAfter, result.Outcome)
	assert.Equal(t, 120*time.Second, result.RetryAfter)
}

func TestUploadRetryAfterDefaultsWithoutHeader(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	result := client.Upload(queuedFixture("n1"))
	assert.Equal(t, syncer.UploadRetryAfter, result.Outcome)
	assert.Equal(t, time.Minute, result.RetryAfter)
}

func TestUploadAuthFailureIsTransient(t *testing.T) {
	for _, status := range []int{
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusRequestTimeout,
	} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"detail": "Invalid token"}`))
		})

		// A bad token says nothing about the check-in itself; the queued
		// request has to survive until the device is fixed.
		result := client.Upload(queuedFixture("n1"))
		assert.Equal(t, syncer.UploadTransient, result.Outcome)
		assert.Error(t, result.Err)
	}
}

func TestUploadServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	result := client.Upload(queuedFixture("n1"))
	assert.Equal(t, syncer.UploadTransient, result.Outcome)
	assert.Error(t, result.Err)
}

func TestUploadUnreachableServerIsTransient(t *testing.T) {
	client, err := syncer.NewClient(config.SyncConfig{
		BaseURL:       "http://127.0.0.1:1",
		APIToken:      "opaque-device-token",
		UploadTimeout: time.Second,
	}, nil)
	require.NoError(t, err)

	result := client.Upload(queuedFixture("n1"))
	assert.Equal(t, syncer.UploadTransient, result.Outcome)
	assert.Error(t, result.Err)
}

func TestNewClientRejectsExpiredJWT(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	token, err := expired.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	_, err = syncer.NewClient(config.SyncConfig{BaseURL: "http://example.test", APIToken: token}, nil)
	assert.Error(t, err)
}

func TestNewClientAcceptsUnexpiredJWT(t *testing.T) {
	valid := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := valid.SignedString([]byte("irrelevant"))
	require.NoError(t, err)

	_, err = syncer.NewClient(config.SyncConfig{BaseURL: "http://example.test", APIToken: token}, nil)
	assert.NoError(t, err)
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := syncer.NewClient(config.SyncConfig{BaseURL: "http://example.test"}, nil)
	assert.Error(t, err)
}

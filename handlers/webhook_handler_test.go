package handlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	svix "github.com/svix/svix-webhooks/go"

	"dietTrackerAPI/internal/types/user"
	"dietTrackerAPI/services"
)

var testWebhookKey = []byte("super-secret-signing-key")

func testWebhookSecret() string {
	return "whsec_" + base64.StdEncoding.EncodeToString(testWebhookKey)
}

func signedRequest(t *testing.T, body string, sentAt time.Time) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(testWebhookSecret())
	require.NoError(t, err)
	signature, err := wh.Sign("msg_1", sentAt, []byte(body))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", strconv.FormatInt(sentAt.Unix(), 10))
	// Clerk may send signatures for several secrets during rotation.
	req.Header.Set("svix-signature", "v1,bm9wZQ== "+signature)
	return req
}

const userCreatedBody = `{
	"type": "user.created",
	"object": "event",
	"data": {
		"id": "user_2abc",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"username": "",
		"image_url": "https://img.example/ada.png",
		"primary_email_address_id": "idn_2",
		"email_addresses": [
			{"id": "idn_1", "email_address": "old@example.com", "verification": {"status": "unverified"}},
			{"id": "idn_2", "email_address": "ada@example.com", "verification": {"status": "verified"}}
		]
	}
}`

func newTestWebhookHandler(t *testing.T, svc UserService) *WebhookHandler {
	t.Helper()
	h, err := NewWebhookHandler(svc, testWebhookSecret(), nil)
	require.NoError(t, err)
	return h
}

func TestWebhookUserCreated(t *testing.T) {
	now := time.Now()
	svc := &stubUserService{}
	h := newTestWebhookHandler(t, svc)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, userCreatedBody, now.Add(-time.Minute)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.created, 1)
	created := svc.created[0]
	assert.Equal(t, "user_2abc", created.ClerkID)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.True(t, created.EmailVerified)
	assert.Equal(t, "AdaLovelace", created.Username)
}

func TestWebhookDuplicateCreateIsAcknowledged(t *testing.T) {
	now := time.Now()
	svc := &stubUserService{createErr: user.ErrDuplicateProfile}
	h := newTestWebhookHandler(t, svc)

	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, userCreatedBody, now))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookUserDeleted(t *testing.T) {
	now := time.Now()
	body := `{"type":"user.deleted","data":{"id":"user_2abc"}}`

	svc := &stubUserService{}
	h := newTestWebhookHandler(t, svc)
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, body, now))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"user_2abc"}, svc.deleted)

	gone := &stubUserService{err: services.ErrUserNotFound}
	h = newTestWebhookHandler(t, gone)
	rec = httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, body, now))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(r *http.Request)
		sentAt time.Time
	}{
		{name: "missing headers", mutate: func(r *http.Request) { r.Header.Del("svix-signature") }, sentAt: now},
		{name: "wrong signature", mutate: func(r *http.Request) { r.Header.Set("svix-signature", "v1,bm9wZQ==") }, sentAt: now},
		{name: "stale timestamp", mutate: func(r *http.Request) {}, sentAt: now.Add(-10 * time.Minute)},
		{name: "tampered id", mutate: func(r *http.Request) { r.Header.Set("svix-id", "msg_2") }, sentAt: now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubUserService{}
			h := newTestWebhookHandler(t, svc)
			req := signedRequest(t, userCreatedBody, tt.sentAt)
			tt.mutate(req)
			rec := httptest.NewRecorder()

			h.HandleClerkWebhook(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, svc.created)
		})
	}
}

func TestWebhookWithoutSecretSkipsVerification(t *testing.T) {
	svc := &stubUserService{}
	h, err := NewWebhookHandler(svc, "", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", strings.NewReader(`{"type":"session.created","data":{}}`))
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewWebhookHandlerRejectsMalformedSecret(t *testing.T) {
	_, err := NewWebhookHandler(&stubUserService{}, "whsec_***", nil)
	assert.Error(t, err)
}

func TestWebhookRejectsOversizedBody(t *testing.T) {
	svc := &stubUserService{}
	h := newTestWebhookHandler(t, svc)

	body := `{"type":"user.created","data":{"pad":"` + strings.Repeat("x", int(maxWebhookBody)) + `"}}`
	rec := httptest.NewRecorder()
	h.HandleClerkWebhook(rec, signedRequest(t, body, time.Now()))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, svc.created)
}

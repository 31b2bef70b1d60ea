package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestSendTextAttachesBearerAndFormField(t *testing.T) {
	roomID := uuid.New()
	var gotAuth, gotContent string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotContent = r.FormValue("content")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1,"chat_room_id":"` + roomID.String() + `","sender_email":"a@b.c","sender_name":"A","content":"hi","created_at":"2026-08-29T10:00:00Z"}`))
	})
	c.SetToken("token-123")

	msg, err := c.SendText(context.Background(), roomID, "hi")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "hi", gotContent)
	assert.Equal(t, int64(1), msg.ID)
	assert.Equal(t, "hi", msg.Content)
}

func TestSendImageUploadsFilePart(t *testing.T) {
	roomID := uuid.New()
	var gotFilename, gotBody string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		gotBody = string(data)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":2,"chat_room_id":"` + roomID.String() + `","sender_email":"a@b.c","sender_name":"A","image_url":"/uploads/x.png","created_at":"2026-08-29T10:00:00Z"}`))
	})
	c.SetToken("token-123")

	msg, err := c.SendImage(context.Background(), roomID, "cat.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "cat.png", gotFilename)
	assert.Equal(t, "png-bytes", gotBody)
	assert.True(t, msg.IsImage())
}

func TestGetMessagesIsOpenRead(t *testing.T) {
	roomID := uuid.New()
	var gotAuth string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/api/v1/chat_rooms/"+roomID.String()+"/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	messages, err := c.GetMessages(context.Background(), roomID)
	require.NoError(t, err)

	assert.Empty(t, gotAuth, "snapshot reads need no token")
	assert.Empty(t, messages)
}

func TestErrorStatusMapsToSentinels(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusUnprocessableEntity, ErrBadRequest},
	}

	for _, tc := range cases {
		status := tc.status
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(`{"error":"nope"}`))
		})

		_, err := c.UpdateMessage(context.Background(), uuid.New(), 1, "x")
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		assert.Contains(t, err.Error(), "nope", "server message survives wrapping")
	}
}

func TestLoginAdoptsToken(t *testing.T) {
	var sawAuthOnWrite string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/login":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"token":"fresh-token"}`))
		case "/api/v1/chat_rooms":
			sawAuthOnWrite = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"` + uuid.NewString() + `","name":"general","created_at":"2026-08-29T10:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	token, err := c.Login(context.Background(), "a@b.c", "password")
	require.NoError(t, err)
	require.Equal(t, "fresh-token", token)

	_, err = c.CreateRoom(context.Background(), "general")
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh-token", sawAuthOnWrite)
}

func TestDeleteMessageSendsNoBodyAndAcceptsNoContent(t *testing.T) {
	roomID := uuid.New()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/chat_rooms/"+roomID.String()+"/messages/7", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	c.SetToken("t")

	err := c.DeleteMessage(context.Background(), roomID, 7)
	require.NoError(t, err)
}

func TestHTTPTimeoutIsConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:0"
	cfg.HTTPTimeout = 5 * time.Second

	c, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
}

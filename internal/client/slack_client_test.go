package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostWebhook(t *testing.T) {
	var got SlackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewSlackClient("", time.Second, zap.NewNop(), nil)
	err := c.PostWebhook(context.Background(), srv.URL+"/services/T/B/x", SlackMessage{
		Channel: "ignored",
		Text:    "Task approved",
		Blocks:  []Block{{Type: "section", Text: &TextObject{Type: "mrkdwn", Text: "*X*"}}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Task approved", got.Text)
	assert.Empty(t, got.Channel)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, "*X*", got.Blocks[0].Text.Text)
}

func TestPostWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("no_service"))
	}))
	defer srv.Close()

	c := NewSlackClient("", time.Second, zap.NewNop(), nil)
	err := c.PostWebhook(context.Background(), srv.URL, SlackMessage{Text: "x"})
	assert.ErrorContains(t, err, "no_service")
}

func TestPostMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		assert.Equal(t, "Bearer xoxb-1", r.Header.Get("Authorization"))
		var msg SlackMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		if msg.Channel != "C1" {
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "channel_not_found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "ts": "1700000000.000100"})
	}))
	defer srv.Close()

	c := NewSlackClient(srv.URL, time.Second, zap.NewNop(), nil)

	ts, err := c.PostMessage(context.Background(), "xoxb-1", SlackMessage{Channel: "C1", Text: "hi", ThreadTS: "1.0"})
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000100", ts)

	_, err = c.PostMessage(context.Background(), "xoxb-1", SlackMessage{Channel: "C2", Text: "hi"})
	assert.ErrorContains(t, err, "channel_not_found")
}

func TestPostMessage_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewSlackClient(srv.URL, 50*time.Millisecond, zap.NewNop(), nil)
	_, err := c.PostMessage(context.Background(), "t", SlackMessage{Text: "slow"})
	assert.Error(t, err)
}

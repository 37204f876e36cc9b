package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendMessage(t *testing.T) {
	api, srv := newFakeAPI(t)
	client := NewClient(testToken, WithBaseURL(srv.URL+"/"))

	require.NoError(t, client.SendMessage(context.Background(), "42", "<b>hi</b>"))

	calls := api.callsTo("sendMessage")
	require.Len(t, calls, 1)
	assert.Equal(t, "42", calls[0].Params["chat_id"])
	assert.Equal(t, "<b>hi</b>", calls[0].Params["text"])
	assert.Equal(t, "HTML", calls[0].Params["parse_mode"])
}

func TestClient_APIError(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.set(func(a *fakeAPI) { a.failSend = true })
	client := NewClient(testToken, WithBaseURL(srv.URL))

	err := client.SendMessage(context.Background(), "42", "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "sendMessage", apiErr.Method)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Contains(t, apiErr.Description, "chat not found")
}

func TestClient_WrongToken(t *testing.T) {
	_, srv := newFakeAPI(t)
	client := NewClient("999:WRONG", WithBaseURL(srv.URL))

	err := client.SendMessage(context.Background(), "42", "hi")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.NotContains(t, err.Error(), "999:WRONG")
}

func TestClient_NotConfigured(t *testing.T) {
	client := NewClient("")
	assert.ErrorIs(t, client.SendMessage(context.Background(), "1", "x"), ErrNotConfigured)
}

func TestClient_GetUpdates(t *testing.T) {
	api, srv := newFakeAPI(t)
	api.updates = [][]Update{{
		{UpdateID: 7, Message: &Message{MessageID: 1, Chat: Chat{ID: 99}, Text: "/start"}},
	}}
	client := NewClient(testToken, WithBaseURL(srv.URL))

	updates, err := client.GetUpdates(context.Background(), 5, time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(7), updates[0].UpdateID)
	assert.Equal(t, int64(99), updates[0].Message.Chat.ID)

	calls := api.callsTo("getUpdates")
	require.Len(t, calls, 1)
	assert.EqualValues(t, 5, calls[0].Params["offset"])
	assert.EqualValues(t, 1, calls[0].Params["timeout"])
}

func TestClient_UnreachableServer(t *testing.T) {
	client := NewClient(testToken,
		WithBaseURL("http://127.0.0.1:1"),
		WithRequestTimeout(500*time.Millisecond),
	)
	err := client.DeleteWebhook(context.Background(), true)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testToken)
}

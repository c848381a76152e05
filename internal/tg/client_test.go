package tg

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path string
	body map[string]any
}

func newTestServer(t *testing.T, reply string) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got.body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return NewClient("TOKEN", WithBaseURL(srv.URL), WithRate(0)), got
}

func TestSendMessage(t *testing.T) {
	c, got := newTestServer(t, `{"ok":true,"result":{"message_id":1}}`)
	kb := NewInlineKeyboardMarkup([][]InlineKeyboardButton{{{Text: "x", CallbackData: "close"}}})
	err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 5, Text: "hi", ParseMode: "HTML", ReplyMarkup: kb})
	require.NoError(t, err)

	assert.Equal(t, "/botTOKEN/sendMessage", got.path)
	assert.Equal(t, "hi", got.body["text"])
	assert.Equal(t, float64(5), got.body["chat_id"])
	assert.Contains(t, got.body, "reply_markup")
}

func TestSendMessageWithoutMarkup(t *testing.T) {
	c, got := newTestServer(t, `{"ok":true,"result":{}}`)
	require.NoError(t, c.SendMessage(context.Background(), SendMessageRequest{ChatID: 5, Text: "hi"}))
	assert.NotContains(t, got.body, "reply_markup")
}

func TestAPIError(t *testing.T) {
	c, _ := newTestServer(t, `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`)
	err := c.EditMessageText(context.Background(), EditMessageTextRequest{ChatID: 1, MessageID: 2, Text: "same"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "editMessageText", apiErr.Method)
	assert.True(t, IsNotModified(err))
}

func TestGetUpdates(t *testing.T) {
	c, got := newTestServer(t, `{"ok":true,"result":[
		{"update_id":10,"message":{"message_id":3,"chat":{"id":7},"from":{"id":7,"first_name":"Ali"},"text":"/start"}},
		{"update_id":11,"callback_query":{"id":"cb","from":{"id":7},"data":"close"}}
	]}`)
	updates, err := c.GetUpdates(context.Background(), 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.Equal(t, float64(10), got.body["offset"])
	assert.Equal(t, float64(30), got.body["timeout"])
	assert.Equal(t, "start", updates[0].Message.Command())
	assert.Equal(t, "Ali", updates[0].Message.From.Name())
	assert.Equal(t, "close", updates[1].CallbackQuery.Data)
}

func TestRateLimitHonorsContext(t *testing.T) {
	c, _ := newTestServer(t, `{"ok":true,"result":true}`)
	WithRate(1)(c)
	ctx := context.Background()
	require.NoError(t, c.DeleteMessage(ctx, 1, 1))
	require.NoError(t, c.DeleteMessage(ctx, 1, 2))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Error(t, c.DeleteMessage(cancelled, 1, 3))
}

func TestMessageHelpers(t *testing.T) {
	m := &Message{Text: "/add@kinokod_bot now"}
	assert.Equal(t, "add", m.Command())
	assert.Empty(t, (&Message{Text: "hello"}).Command())

	assert.Equal(t, "v1", (&Message{Video: &Video{FileID: "v1"}}).FileID())
	assert.Equal(t, "d1", (&Message{Document: &Document{FileID: "d1"}}).FileID())
	assert.Empty(t, (&Message{}).FileID())
}

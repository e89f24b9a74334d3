package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTelegram_RetriesUntilSuccess(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "chat", payload["chat_id"])
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond
	assert.NoError(t, tg.SendText(context.Background(), "hello"))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestTelegram_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat")
	tg.BaseURL = srv.URL
	tg.Backoff = time.Millisecond
	err := tg.SendText(context.Background(), "hello")
	assert.EqualError(t, err, "telegram status=500")
}

func TestTelegram_RequiresConfig(t *testing.T) {
	assert.Error(t, NewTelegram("", "chat").SendText(context.Background(), "x"))
}

func TestStructuredMessage_Render(t *testing.T) {
	msg := StructuredMessage{
		Title: "Upgrade",
		Sections: []MessageSection{
			{Title: "Payment", Lines: []string{"user=1", " ", "amount=9.99 USD"}},
			{Title: "Empty", Lines: []string{""}},
		},
		Footer:    "tier=PREMIUM",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	out := msg.RenderMarkdown()
	assert.True(t, strings.HasPrefix(out, "*Upgrade*"))
	assert.Contains(t, out, "- amount=9.99 USD")
	assert.NotContains(t, out, "Empty")
	assert.Contains(t, out, "Time: 2024-05-01 12:00:00 UTC")
	assert.Equal(t, "", StructuredMessage{}.RenderMarkdown())
}

func TestTelegram_TruncatesLongText(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		got, _ = payload["text"].(string)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "chat")
	tg.BaseURL = srv.URL
	assert.NoError(t, tg.SendText(context.Background(), strings.Repeat("x", 5000)))
	assert.Len(t, got, maxTelegramText)
	assert.True(t, strings.HasSuffix(got, "..."))
}

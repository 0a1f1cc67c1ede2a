package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Increase the button contrast."}}]}`))
	}))
	defer srv.Close()

	o := New("sk-test", "gpt-4o", "")
	o.BaseURL = srv.URL + "/v1"

	reply, err := o.Chat(context.Background(), "What should I fix first?", &models.ImageBuffer{MIMEType: "image/png", Data: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "Increase the button contrast.", reply)

	assert.Equal(t, "gpt-4o", got.Model)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Contains(t, got.Messages[0].Content[0].Text, "in English")
	assert.Equal(t, "data:image/png;base64,AQI=", got.Messages[0].Content[1].ImageURL.URL)
}

func TestChatErrors(t *testing.T) {
	_, err := New("", "gpt-4o", "").Chat(context.Background(), "hi", nil)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	o := New("sk-test", "gpt-4o", "")
	o.BaseURL = srv.URL
	_, err = o.Chat(context.Background(), "hi", nil)
	assert.ErrorContains(t, err, "no choices")
}

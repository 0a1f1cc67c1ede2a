package ollama

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
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"Align the form labels."}`))
	}))
	defer srv.Close()

	o := New(srv.URL+"/", "llava", "German")
	reply, err := o.Chat(context.Background(), "Any alignment problems?", &models.ImageBuffer{MIMEType: "image/png", Data: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, "Align the form labels.", reply)

	assert.Equal(t, "llava", got["model"])
	assert.Equal(t, false, got["stream"])
	assert.Contains(t, got["prompt"], "in German")
	assert.Equal(t, []interface{}{"AQI="}, got["images"])
}

func TestChatWithoutImage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "llava", "").Chat(context.Background(), "hello", nil)
	require.NoError(t, err)
	_, hasImages := got["images"]
	assert.False(t, hasImages)
}

func TestChatNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "missing", "").Chat(context.Background(), "hello", nil)
	assert.ErrorContains(t, err, "404")
}

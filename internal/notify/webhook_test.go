package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_JSON(t *testing.T) {
	var got webhookPayload
	var contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, nil).Send(context.Background(), Message{Title: "Vehicle ENTERED lot", Body: "Time: now"})
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "**Vehicle ENTERED lot**\nTime: now", got.Content)
}

func TestWebhook_Multipart(t *testing.T) {
	img := filepath.Join(t.TempDir(), "snapshot_20260101_120000.000.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpegbytes"), 0644))

	var payload webhookPayload
	var filename string
	var fileData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.Unmarshal([]byte(r.FormValue("payload_json")), &payload)

		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		filename = hdr.Filename
		fileData, _ = io.ReadAll(f)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	msg := Message{Title: "Vehicle EXITED lot", Body: "Time: now", ImagePath: img}
	require.NoError(t, NewWebhook(srv.URL, srv.Client()).Send(context.Background(), msg))

	assert.Equal(t, "**Vehicle EXITED lot**\nTime: now", payload.Content)
	assert.Equal(t, filepath.Base(img), filename)
	assert.Equal(t, "jpegbytes", string(fileData))
}

func TestWebhook_Errors(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer srv.Close()

		err := NewWebhook(srv.URL, nil).Send(context.Background(), Message{Title: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("missing image", func(t *testing.T) {
		err := NewWebhook("http://127.0.0.1:0", nil).Send(context.Background(), Message{ImagePath: "/no/such/file.jpg"})
		assert.Error(t, err)
	})

	t.Run("context deadline", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		assert.Error(t, NewWebhook(srv.URL, nil).Send(ctx, Message{Title: "x"}))
	})
}

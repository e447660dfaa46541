package sendblue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var gotPath, gotKey, gotSecret string
	var gotBody sendMessageRequest
	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotKey = r.Header.Get("sb-api-key-id")
				gotSecret = r.Header.Get("sb-api-secret-key")
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
				w.WriteHeader(http.StatusOK)
			},
		),
	)
	defer ts.Close()

	client, err := NewClient("key", "secret", WithBaseURL(ts.URL))
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), "+15551230000", "hello")
	require.NoError(t, err)
	require.Equal(t, "/api/send-message", gotPath)
	require.Equal(t, "key", gotKey)
	require.Equal(t, "secret", gotSecret)
	require.Equal(t, sendMessageRequest{Number: "+15551230000", Content: "hello"}, gotBody)
}

func TestSendMessageStatusError(t *testing.T) {
	ts := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", http.StatusUnauthorized)
			},
		),
	)
	defer ts.Close()

	client, err := NewClient("key", "secret", WithBaseURL(ts.URL))
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), "+15551230000", "hello")
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient("", "secret")
	require.Error(t, err)
	_, err = NewClient("key", "")
	require.Error(t, err)
}

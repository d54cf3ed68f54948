package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/text/encoding/korean"
)

func TestGetDecodesUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
		_, _ = w.Write([]byte("<html>클린 코드</html>"))
	}))
	defer server.Close()

	body, err := Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "클린 코드")
}

func TestGetDecodesEUCKRFallback(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().Bytes([]byte("한국어 페이지"))
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(encoded)
	}))
	defer server.Close()

	body, err := Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "한국어 페이지")
}

func TestGetNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Get(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestStealthGetFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/book/show/42", http.StatusFound)
	})
	mux.HandleFunc("/book/show/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "?1", r.Header.Get("Sec-Fetch-User"))
		_, _ = w.Write([]byte("<html>detail</html>"))
	})

	body, finalURL, err := StealthGet(context.Background(), server.URL+"/search", 0)
	require.NoError(t, err)
	assert.Contains(t, body, "detail")
	assert.Contains(t, finalURL, "/book/show/42")
}

func TestStealthGetRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, _, err := StealthGet(context.Background(), server.URL, 2)
	require.NoError(t, err)
	assert.Equal(t, "ok", body)
	assert.Equal(t, 2, calls)
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "aladin ttb key masked",
			input: "https://www.aladin.co.kr/ttb/api/ItemSearch.aspx?Query=test&ttbkey=secret123",
			want:  "ttbkey=%2A%2A%2A",
		},
		{
			name:  "google books key masked",
			input: "https://www.googleapis.com/books/v1/volumes?q=test&key=secret456",
			want:  "key=%2A%2A%2A",
		},
		{
			name:  "url without keys unchanged",
			input: "https://product.kyobobook.co.kr/detail/S000000610601",
			want:  "https://product.kyobobook.co.kr/detail/S000000610601",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskURL(tt.input)
			assert.Contains(t, got, tt.want)
			assert.NotContains(t, got, "secret")
		})
	}
}

package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo_FillsMissingHeadersOnly(t *testing.T) {
	t.Parallel()

	// Arrange: an upstream that echoes the headers it received.
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	c := New(time.Second)
	c.Headers = map[string]string{"Accept": "*/*", "X-Mirae-Version": "1"}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	// Act
	res, err := c.Do(req)
	require.NoError(t, err)
	res.Body.Close()

	// Assert
	got := <-headers
	require.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	require.Equal(t, "application/json", got.Get("Accept"))
	require.Equal(t, "1", got.Get("X-Mirae-Version"))
}

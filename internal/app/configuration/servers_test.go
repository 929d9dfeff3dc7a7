package configuration

import (
	"context"
	"net/url"
	"testing"

	"github.com/form3tech-oss/pact-record-proxy/internal/app/pactrecord"
	"github.com/stretchr/testify/require"
)

// This test ensures that starting a second server errors only when the
// listen address is already taken. One server runs per host and port.
func TestStartServer(t *testing.T) {
	type testCase struct {
		name        string
		url1        string
		url2        string
		shouldError bool
	}

	for _, tc := range []testCase{
		{
			name:        "Same host, same port",
			url1:        "http://localhost:18080",
			url2:        "http://localhost:18080",
			shouldError: true,
		},
		{
			name:        "Same host, different port",
			url1:        "http://localhost:18080",
			url2:        "http://localhost:18081",
			shouldError: false,
		},
		{
			name:        "Different host, same port",
			url1:        "http://localhost:18080",
			url2:        "http://test:18080",
			shouldError: false,
		},
		{
			name:        "No host, same port",
			url1:        "http://:18080",
			url2:        "http://:18080",
			shouldError: true,
		},
	} {
		t.Run(tc.name, func(st *testing.T) {
			defer ShutdownAllServers(context.Background())

			url1, err := url.Parse(tc.url1)
			require.NoError(st, err)

			url2, err := url.Parse(tc.url2)
			require.NoError(st, err)

			err = StartServer(url1, &pactrecord.Config{PactDir: st.TempDir()})
			require.NoError(st, err)

			err = StartServer(url2, &pactrecord.Config{PactDir: st.TempDir()})
			require.Equalf(st, tc.shouldError, err != nil, "found error: %s", err)
		})
	}
}

func TestStartServerInvalidConfig(t *testing.T) {
	defer ShutdownAllServers(context.Background())

	addr, err := url.Parse("http://localhost:18090")
	require.NoError(t, err)

	err = StartServer(addr, &pactrecord.Config{Mode: "bogus", PactDir: t.TempDir()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported pact mode")
}

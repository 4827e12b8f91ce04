// Package testutil holds helpers shared by package tests: a deterministic
// clock, a loopback mock backend and credential file writers.
package testutil

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/roach88/tickcheck/internal/mockapi"
)

// StartMockServer serves a freshly seeded mock backend on a loopback port
// and returns it with its base URL. The server stops when the test ends.
func StartMockServer(t *testing.T, opts ...func(*mockapi.Options)) (*mockapi.Server, string) {
	t.Helper()

	o := mockapi.Options{PasswordCost: bcrypt.MinCost}
	for _, fn := range opts {
		fn(&o)
	}
	srv, err := mockapi.New(o)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	return srv, "http://" + ln.Addr().String()
}

// WriteFile writes content into a new file in a per-test directory and
// returns its path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// WriteCookieFile opens a session for username on srv and writes it as a
// Netscape cookie-jar line, the format browsers export.
func WriteCookieFile(t *testing.T, srv *mockapi.Server, username string) string {
	t.Helper()
	sid, err := srv.OpenSession(username)
	require.NoError(t, err)
	line := "localhost\tFALSE\t/\tFALSE\t0\t" + mockapi.SessionCookie + "\t" + sid + "\n"
	return WriteFile(t, "cookie_"+username+".txt", "# Netscape HTTP Cookie File\n"+line)
}

package actor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tickcheck/internal/apiclient"
	"github.com/roach88/tickcheck/internal/config"
	"github.com/roach88/tickcheck/internal/credential"
)

type fakeLoginer struct {
	calls int
	cred  credential.Credential
	err   error
}

func (f *fakeLoginer) Login(_ context.Context, _, _, _ string) (credential.Credential, error) {
	f.calls++
	return f.cred, f.err
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" support ")
	require.NoError(t, err)
	assert.Equal(t, RoleSupport, r)

	_, err = ParseRole("auditor")
	assert.Error(t, err)
}

func TestResolve_CookieFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie_manager.txt")
	require.NoError(t, os.WriteFile(path, []byte("JSESSIONID\tMGR123\n"), 0600))

	cfg := &config.Config{
		AuthMode: config.AuthCookie,
		Actors:   map[string]config.ActorConfig{"MANAGER": {CredentialFile: path}},
	}
	reg := NewRegistry(cfg, nil, nil)

	a := reg.Resolve(context.Background(), RoleManager)
	assert.True(t, a.Authenticated)
	assert.Equal(t, "cookie-file", a.Source)
	assert.Equal(t, "JSESSIONID=MGR123", a.Credential.Cookie)
	assert.Same(t, a, reg.Resolve(context.Background(), RoleManager))
}

func TestResolve_UnprovisionedRoleIsUnauthenticated(t *testing.T) {
	reg := NewRegistry(&config.Config{AuthMode: config.AuthCookie}, nil, nil)

	a := reg.Resolve(context.Background(), RoleEmployee)
	assert.False(t, a.Authenticated)
	assert.True(t, errors.Is(a.Missing, credential.ErrCredentialMissing))
	assert.Equal(t, "EMPLOYEE (unauthenticated)", a.String())
}

func TestResolve_CookieFileWithoutToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookie_employee.txt")
	require.NoError(t, os.WriteFile(path, []byte("session expired, log in again"), 0600))

	cfg := &config.Config{
		AuthMode: config.AuthCookie,
		Actors:   map[string]config.ActorConfig{"EMPLOYEE": {CredentialFile: path}},
	}
	a := NewRegistry(cfg, nil, nil).Resolve(context.Background(), RoleEmployee)
	assert.False(t, a.Authenticated)
	assert.True(t, errors.Is(a.Missing, credential.ErrCredentialMissing))
}

func TestResolve_LoginSucceedsWithSession(t *testing.T) {
	login := &fakeLoginer{cred: credential.Cookie("JSESSIONID=S1")}
	cfg := &config.Config{
		AuthMode: config.AuthLogin,
		Actors:   map[string]config.ActorConfig{"ADMIN": {Username: "admin", Password: "password"}},
	}

	a := NewRegistry(cfg, login, nil).Resolve(context.Background(), RoleAdmin)
	assert.True(t, a.Authenticated)
	assert.Equal(t, "session-login", a.Source)
	assert.Equal(t, credential.KindCookie, a.Credential.Kind)
	assert.Equal(t, 1, login.calls)
}

func TestResolve_LoginFallsBackToBasic(t *testing.T) {
	login := &fakeLoginer{err: &apiclient.HTTPError{Method: "POST", Endpoint: "/login", Status: 401}}
	cfg := &config.Config{
		AuthMode: config.AuthLogin,
		Actors:   map[string]config.ActorConfig{"ADMIN": {Username: "admin", Password: "password"}},
	}

	a := NewRegistry(cfg, login, nil).Resolve(context.Background(), RoleAdmin)
	assert.True(t, a.Authenticated)
	assert.Equal(t, "basic", a.Source)
	assert.Equal(t, credential.Basic("admin", "password"), a.Credential)
}

func TestResolve_LoginUnreachableStopsChain(t *testing.T) {
	login := &fakeLoginer{err: &apiclient.UnreachableError{Method: "POST", Endpoint: "/login", Err: errors.New("connection refused")}}
	cfg := &config.Config{
		AuthMode: config.AuthLogin,
		Actors:   map[string]config.ActorConfig{"ADMIN": {Username: "admin", Password: "password"}},
	}

	a := NewRegistry(cfg, login, nil).Resolve(context.Background(), RoleAdmin)
	assert.False(t, a.Authenticated)
	assert.True(t, apiclient.IsUnreachable(a.Missing))
}

func TestResolve_PerActorModeAndBearer(t *testing.T) {
	cfg := &config.Config{
		AuthMode: config.AuthCookie,
		Actors: map[string]config.ActorConfig{
			"SUPPORT": {Token: "opaque", AuthMode: config.AuthBearer},
		},
	}

	a := NewRegistry(cfg, nil, nil).Resolve(context.Background(), RoleSupport)
	assert.True(t, a.Authenticated)
	assert.Equal(t, credential.Bearer("opaque"), a.Credential)
}

func TestResolveWithFallback(t *testing.T) {
	cfg := &config.Config{
		AuthMode: config.AuthBasic,
		Actors:   map[string]config.ActorConfig{"ADMIN": {Username: "admin", Password: "password"}},
	}
	reg := NewRegistry(cfg, nil, nil)

	a := reg.ResolveWithFallback(context.Background(), RoleManager, RoleAdmin)
	assert.Equal(t, RoleAdmin, a.Role)
	assert.True(t, a.Authenticated)

	// No authenticated fallback: the unauthenticated primary is returned.
	b := NewRegistry(&config.Config{AuthMode: config.AuthBasic}, nil, nil).
		ResolveWithFallback(context.Background(), RoleManager, RoleAdmin)
	assert.Equal(t, RoleManager, b.Role)
	assert.False(t, b.Authenticated)
}

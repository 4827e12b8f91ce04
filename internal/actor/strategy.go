package actor

import (
	"context"
	"fmt"

	"github.com/roach88/tickcheck/internal/config"
	"github.com/roach88/tickcheck/internal/credential"
)

// Loginer performs a form session login.
type Loginer interface {
	Login(ctx context.Context, username, password, cookieLabel string) (credential.Credential, error)
}

// Strategy obtains a credential for one role using one mechanism.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, role Role, ac config.ActorConfig) (credential.Credential, error)
}

type cookieFileStrategy struct {
	resolver credential.Resolver
}

func (s cookieFileStrategy) Name() string { return "cookie-file" }

func (s cookieFileStrategy) Authenticate(_ context.Context, _ Role, ac config.ActorConfig) (credential.Credential, error) {
	return s.resolver.Resolve(ac.CredentialFile)
}

type sessionLoginStrategy struct {
	login Loginer
}

func (s sessionLoginStrategy) Name() string { return "session-login" }

func (s sessionLoginStrategy) Authenticate(ctx context.Context, _ Role, ac config.ActorConfig) (credential.Credential, error) {
	if ac.Username == "" {
		return credential.Credential{}, fmt.Errorf("%w: no username configured", credential.ErrCredentialMissing)
	}
	return s.login.Login(ctx, ac.Username, ac.Password, credential.DefaultCookieLabel)
}

type basicStrategy struct{}

func (basicStrategy) Name() string { return "basic" }

func (basicStrategy) Authenticate(_ context.Context, _ Role, ac config.ActorConfig) (credential.Credential, error) {
	if ac.Username == "" {
		return credential.Credential{}, fmt.Errorf("%w: no username configured", credential.ErrCredentialMissing)
	}
	return credential.Basic(ac.Username, ac.Password), nil
}

type bearerStrategy struct {
	resolver credential.Resolver
}

func (s bearerStrategy) Name() string { return "bearer" }

func (s bearerStrategy) Authenticate(_ context.Context, _ Role, ac config.ActorConfig) (credential.Credential, error) {
	if ac.Token != "" {
		return credential.Bearer(ac.Token), nil
	}
	return s.resolver.Resolve(ac.TokenFile)
}

package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/tickcheck/internal/apiclient"
	"github.com/roach88/tickcheck/internal/config"
	"github.com/roach88/tickcheck/internal/credential"
)

// Registry resolves and memoizes actors for one run.
type Registry struct {
	cfg     *config.Config
	login   Loginer
	cookies credential.Resolver
	tokens  credential.Resolver
	logger  *zap.Logger
	now     func() time.Time
	actors  map[Role]*Actor
}

// NewRegistry creates a registry. login may be nil when no actor uses the
// login auth mode.
func NewRegistry(cfg *config.Config, login Loginer, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		login:   login,
		cookies: credential.NewCookieFileResolver(credential.DefaultCookieLabel),
		tokens:  &credential.TokenFileResolver{},
		logger:  logger,
		now:     time.Now,
		actors:  make(map[Role]*Actor),
	}
}

// strategies returns the ordered strategies for an auth mode. The login
// mode is an explicit two-step chain: session login first, basic auth
// second.
func (r *Registry) strategies(mode string) []Strategy {
	switch mode {
	case config.AuthLogin:
		return []Strategy{sessionLoginStrategy{login: r.login}, basicStrategy{}}
	case config.AuthBasic:
		return []Strategy{basicStrategy{}}
	case config.AuthBearer:
		return []Strategy{bearerStrategy{resolver: r.tokens}}
	default:
		return []Strategy{cookieFileStrategy{resolver: r.cookies}}
	}
}

// Resolve returns the actor for role, resolving it on first use.
func (r *Registry) Resolve(ctx context.Context, role Role) *Actor {
	if a, ok := r.actors[role]; ok {
		return a
	}
	a := r.resolve(ctx, role)
	r.actors[role] = a
	return a
}

// ResolveWithFallback returns the actor for role, or the fallback role's
// actor when the primary is unauthenticated and the fallback is not.
func (r *Registry) ResolveWithFallback(ctx context.Context, role, fallback Role) *Actor {
	primary := r.Resolve(ctx, role)
	if primary.Authenticated || fallback == "" || fallback == role {
		return primary
	}
	alt := r.Resolve(ctx, fallback)
	if !alt.Authenticated {
		return primary
	}
	r.logger.Warn("actor unauthenticated, using fallback",
		zap.String("role", string(role)),
		zap.String("fallback", string(fallback)),
		zap.NamedError("reason", primary.Missing),
	)
	return alt
}

func (r *Registry) resolve(ctx context.Context, role Role) *Actor {
	ac, ok := r.cfg.Actors[string(role)]
	if !ok {
		return r.missing(role, fmt.Errorf("%w: role %s not provisioned", credential.ErrCredentialMissing, role))
	}

	mode := r.cfg.ModeFor(string(role))
	var lastErr error
	for _, s := range r.strategies(mode) {
		if s.Name() == "session-login" && r.login == nil {
			lastErr = errors.New("session login unavailable")
			continue
		}
		cred, err := s.Authenticate(ctx, role, ac)
		if err != nil {
			r.logger.Info("auth strategy failed",
				zap.String("role", string(role)),
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			lastErr = err
			if apiclient.IsUnreachable(err) || ctx.Err() != nil {
				break
			}
			continue
		}
		if cred.IsZero() {
			lastErr = fmt.Errorf("%w: %s produced no token", credential.ErrCredentialMissing, s.Name())
			continue
		}
		r.inspect(role, cred)
		r.logger.Debug("actor resolved",
			zap.String("role", string(role)),
			zap.String("strategy", s.Name()),
			zap.Stringer("credential", cred),
		)
		return &Actor{Role: role, Credential: cred, Authenticated: true, Source: s.Name()}
	}
	return r.missing(role, lastErr)
}

// inspect warns about bearer tokens that are already expired.
func (r *Registry) inspect(role Role, cred credential.Credential) {
	if cred.Kind != credential.KindBearer {
		return
	}
	info, err := credential.InspectToken(cred.Token)
	if err != nil {
		return
	}
	if info.Expired(r.now()) {
		r.logger.Warn("bearer token expired",
			zap.String("role", string(role)),
			zap.String("subject", info.Subject),
			zap.Time("expires_at", info.ExpiresAt),
		)
	}
}

func (r *Registry) missing(role Role, err error) *Actor {
	if err == nil {
		err = credential.ErrCredentialMissing
	}
	r.logger.Warn("credential missing, actor will be unauthenticated",
		zap.String("role", string(role)),
		zap.Error(err),
	)
	return &Actor{Role: role, Missing: err}
}

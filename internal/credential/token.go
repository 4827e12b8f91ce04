package credential

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenFileResolver reads a bearer token from a file.
type TokenFileResolver struct {
	ReadFile func(name string) ([]byte, error)
}

// Resolve returns a bearer Credential holding the trimmed file content.
func (r *TokenFileResolver) Resolve(source string) (Credential, error) {
	if source == "" {
		return Credential{}, fmt.Errorf("%w: no token file configured", ErrCredentialMissing)
	}
	read := r.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(source)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %s: %v", ErrCredentialMissing, source, err)
	}
	token := strings.TrimSpace(string(data))
	token = strings.TrimPrefix(token, "Bearer ")
	return Bearer(token), nil
}

// TokenInfo is what can be learned from a bearer token without the key.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// Expired reports whether the token expired before now.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

// InspectToken decodes JWT claims without verifying the signature. Opaque
// (non-JWT) tokens return an error; callers treat that as "unknown".
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("not a JWT: %w", err)
	}
	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

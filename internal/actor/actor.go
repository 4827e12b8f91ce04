// Package actor maps logical roles to authenticated identities.
//
// Resolution never fails: a role whose credential cannot be obtained comes
// back as an unauthenticated Actor with Missing set, so a scenario can
// fall back to an admin-privileged path instead of aborting.
package actor

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/roach88/tickcheck/internal/credential"
)

// Role is a logical identity in the ticketing workflow.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
	RoleSupport  Role = "SUPPORT"
	RoleAdmin    Role = "ADMIN"
)

// Roles lists every known role.
var Roles = []Role{RoleEmployee, RoleManager, RoleSupport, RoleAdmin}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q: must be one of %v", s, Roles)
}

// Actor is an immutable per-run identity handle.
type Actor struct {
	Role          Role
	Credential    credential.Credential
	Authenticated bool
	Source        string // strategy that produced the credential
	Missing       error  // why no credential was obtained
}

// Apply attaches the actor's credential to req.
func (a *Actor) Apply(req *http.Request) {
	a.Credential.Apply(req)
}

// String describes the actor without leaking secrets.
func (a *Actor) String() string {
	if !a.Authenticated {
		return fmt.Sprintf("%s (unauthenticated)", a.Role)
	}
	return fmt.Sprintf("%s via %s [%s]", a.Role, a.Source, a.Credential)
}

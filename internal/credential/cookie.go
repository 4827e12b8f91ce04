package credential

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultCookieLabel is the servlet-container session cookie name.
const DefaultCookieLabel = "JSESSIONID"

// CookieFileResolver reads a saved session file and extracts the session
// cookie for Label.
type CookieFileResolver struct {
	Label string

	// ReadFile defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

// NewCookieFileResolver returns a resolver for the given cookie label.
func NewCookieFileResolver(label string) *CookieFileResolver {
	if label == "" {
		label = DefaultCookieLabel
	}
	return &CookieFileResolver{Label: label, ReadFile: os.ReadFile}
}

// Resolve reads source and returns a cookie Credential. A readable file
// without a recognizable token yields the zero Credential and no error.
func (r *CookieFileResolver) Resolve(source string) (Credential, error) {
	if source == "" {
		return Credential{}, fmt.Errorf("%w: no credential file configured", ErrCredentialMissing)
	}
	read := r.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(source)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %s: %v", ErrCredentialMissing, source, err)
	}
	return Cookie(ParseCookie(string(data), r.label())), nil
}

func (r *CookieFileResolver) label() string {
	if r.Label == "" {
		return DefaultCookieLabel
	}
	return r.Label
}

var bareToken = regexp.MustCompile(`^[A-Za-z0-9._~+/=-]+$`)

// ParseCookie extracts "LABEL=value" from free-form text. Accepted forms,
// tried in order:
//
//	LABEL<tabs or spaces>VALUE   (cookie-jar line or copied header table)
//	LABEL=VALUE                  (anywhere in the text)
//	VALUE                        (a single bare token)
//
// It returns "" when no form matches.
func ParseCookie(content, label string) string {
	quoted := regexp.QuoteMeta(label)

	line := regexp.MustCompile(quoted + `[\t ]+([A-Za-z0-9]+)`)
	if m := line.FindStringSubmatch(content); m != nil {
		return label + "=" + m[1]
	}

	pair := regexp.MustCompile(quoted + `=([^;\s]+)`)
	if m := pair.FindStringSubmatch(content); m != nil {
		return label + "=" + m[1]
	}

	trimmed := strings.TrimSpace(content)
	if trimmed != "" && !strings.Contains(trimmed, label) && bareToken.MatchString(trimmed) {
		return label + "=" + trimmed
	}
	return ""
}

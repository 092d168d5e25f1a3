package blockhub

import (
	"regexp"
	"strings"
)

// Usernames starting with this prefix are reserved for internal owners such
// as anonymous sessions.
const reservedPrefix = "_"

var usernameRegexp = regexp.MustCompile(`^[a-zA-Z0-9_\-().]+$`)

func validateNewUser(username, email string) error {
	if username == "" {
		return missingArgument("username")
	}

	if email == "" {
		return missingArgument("email")
	}

	if strings.HasPrefix(username, reservedPrefix) || !usernameRegexp.MatchString(username) {
		return invalidArgument("username")
	}

	return nil
}

var usernameCharRegexp = regexp.MustCompile(`[^a-zA-Z0-9_\-().]`)

// localUsername turns an external username into one validateNewUser accepts.
// Disallowed characters and the reserved prefix are dropped; a name left
// empty falls back to the provider suffix, then to "user".
func localUsername(external, suffix string) string {
	name := usernameCharRegexp.ReplaceAllString(external, "")
	name = strings.TrimLeft(name, reservedPrefix)
	if name == "" {
		name = suffix
	}
	if name == "" {
		name = "user"
	}
	return name
}

// providerSuffix turns a provider type such as "Snap!" into "snap".
func providerSuffix(providerType string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(providerType) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

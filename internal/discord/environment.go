package discord

import (
	"fmt"
	"net/http"
	"strings"
)

// CallbackPath is where Discord sends the browser back after authorization.
const CallbackPath = "/api/auth/discord/callback"

// Environment describes the deployment a request arrived at.
type Environment struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Protocol    string `json:"protocol"`
	RedirectURI string `json:"redirectUri"`
}

// Order matters: development hosts also end in .replit.dev.
var knownEnvironments = []struct {
	name     string
	patterns []string
}{
	{"development", []string{"localhost", ".janeway.replit.dev"}},
	{"production", []string{".replit.app"}},
	{"preview", []string{".replit.dev"}},
}

var wildcardHosts = []string{"*.replit.app", "*.replit.dev", "*.janeway.replit.dev"}

// DetectEnvironment classifies the request host and derives the callback URI
// Discord must redirect to for it.
func DetectEnvironment(r *http.Request) Environment {
	host := r.Host
	if host == "" {
		host = "localhost:5000"
	}

	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if strings.Contains(host, "localhost") {
			proto = "http"
		} else {
			proto = "https"
		}
	}

	name := "unknown"
	for _, env := range knownEnvironments {
		if matchesAny(host, env.patterns) {
			name = env.name
			break
		}
	}

	return Environment{
		Name:        name,
		Domain:      host,
		Protocol:    proto,
		RedirectURI: fmt.Sprintf("%s://%s%s", proto, host, CallbackPath),
	}
}

func matchesAny(host string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(host, p) {
			return true
		}
	}
	return false
}

// AllRedirectURIs lists every callback URI that should be registered in the
// Discord developer portal for the given public domains.
func AllRedirectURIs(domains []string) []string {
	uris := []string{"http://localhost:5000" + CallbackPath}
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			uris = append(uris, "https://"+d+CallbackPath)
		}
	}
	for _, w := range wildcardHosts {
		uris = append(uris, "https://"+w+CallbackPath)
	}

	seen := make(map[string]struct{}, len(uris))
	out := uris[:0]
	for _, u := range uris {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// SetupInstructions renders the portal checklist shown by the setup guide.
func SetupInstructions(clientID string, uris []string) string {
	var b strings.Builder
	b.WriteString("Discord Developer Portal Configuration Instructions:\n\n")
	fmt.Fprintf(&b, "1. Go to: https://discord.com/developers/applications/%s/oauth2\n", clientID)
	b.WriteString("2. Add these Redirect URIs:\n\n")
	for _, u := range uris {
		fmt.Fprintf(&b, "   - %s\n", u)
	}
	b.WriteString("\n3. Save changes\n\n")
	b.WriteString("Note: Wildcard patterns (*.replit.app) may not work in Discord.\n")
	b.WriteString("Add specific domains as they become available.")
	return b.String()
}

// ValidateRedirectURI reports whether uri is the callback expected for r.
func ValidateRedirectURI(uri string, r *http.Request) bool {
	return uri == DetectEnvironment(r).RedirectURI
}

package gitremote

import (
	"fmt"
	"regexp"
	"strings"
)

// Locator identifies a remote repository parsed from user input.
type Locator struct {
	Host  string
	Owner string
	Repo  string
	SSH   bool
}

var (
	sshLocatorRE   = regexp.MustCompile(`^([A-Za-z0-9_-]+)@([A-Za-z0-9.-]+):([A-Za-z0-9._-]+)/([A-Za-z0-9._-]+?)(\.git)?$`)
	httpsLocatorRE = regexp.MustCompile(`^https?://([A-Za-z0-9.-]+)/([A-Za-z0-9._-]+)/([A-Za-z0-9._-]+?)(\.git)?/?$`)
)

// ParseLocator recognizes the SSH form user@host:owner/repo[.git] and the
// HTTP(S) form https://host/owner/repo[.git]. Anything else, including
// partial matches, yields ok=false.
func ParseLocator(text string) (Locator, bool) {
	text = strings.TrimSpace(text)
	if m := sshLocatorRE.FindStringSubmatch(text); m != nil {
		return Locator{Host: m[2], Owner: m[3], Repo: m[4], SSH: true}, true
	}
	if m := httpsLocatorRE.FindStringSubmatch(text); m != nil {
		return Locator{Host: m[1], Owner: m[2], Repo: m[3]}, true
	}
	return Locator{}, false
}

// CloneURL returns the HTTPS clone URL without any embedded credential.
func (l Locator) CloneURL() string {
	host := l.Host
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://%s/%s/%s.git", host, l.Owner, l.Repo)
}

// AuthenticatedURL embeds a token into the HTTPS clone URL. The result
// must never reach a log line or returned error without redaction.
func (l Locator) AuthenticatedURL(token string) string {
	if token == "" {
		return l.CloneURL()
	}
	host := l.Host
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://x-access-token:%s@%s/%s/%s.git", token, host, l.Owner, l.Repo)
}

func (l Locator) String() string {
	return l.Owner + "/" + l.Repo
}

package gitremote

import (
	"regexp"
	"strings"
)

var (
	authURLRE   = regexp.MustCompile(`https?://[^@/\s]+@`)
	tokenLitRE  = regexp.MustCompile(`\b(ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{20,}\b`)
	finePatRE   = regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{20,}\b`)
	redactedURL = "https://***@"
)

// Redact scrubs credentials from text before it reaches a return value,
// log line, or persisted record. Both embedded authenticated URLs and bare
// token literals are replaced, plus the exact supplied token if known.
func Redact(text, token string) string {
	if text == "" {
		return text
	}
	out := authURLRE.ReplaceAllString(text, redactedURL)
	out = tokenLitRE.ReplaceAllString(out, "***")
	out = finePatRE.ReplaceAllString(out, "***")
	if token != "" {
		out = strings.ReplaceAll(out, token, "***")
	}
	return out
}

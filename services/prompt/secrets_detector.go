package prompt

import (
	"regexp"
	"sort"
	"strings"
)

// SecretType represents different types of secrets that can be detected
type SecretType string

const (
	SecretTypeOpenAIKey        SecretType = "openai_key"
	SecretTypeAnthropicKey     SecretType = "anthropic_key"
	SecretTypeGroqKey          SecretType = "groq_key"
	SecretTypeGoogleKey        SecretType = "google_key"
	SecretTypeAWSKey           SecretType = "aws_key"
	SecretTypeGitHubToken      SecretType = "github_token"
	SecretTypeJWT              SecretType = "jwt"
	SecretTypeBearerToken      SecretType = "bearer_token"
	SecretTypeAPIKey           SecretType = "api_key"
	SecretTypePrivateKey       SecretType = "private_key"
	SecretTypeDatabaseURL      SecretType = "database_url"
	SecretTypeConnectionString SecretType = "connection_string"
)

// LeakDetection is one credential-shaped substring
type LeakDetection struct {
	Type       SecretType
	StartPos   int
	EndPos     int
	Confidence float64
}

type secretRule struct {
	kind       SecretType
	confidence float64
	pattern    *regexp.Regexp
}

// Ordered most specific first so overlapping generic matches lose ties.
var secretRules = []secretRule{
	{SecretTypeAnthropicKey, 0.98, regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{20,}`)},
	{SecretTypeOpenAIKey, 0.95, regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_\-]{20,}`)},
	{SecretTypeGroqKey, 0.95, regexp.MustCompile(`\bgsk_[A-Za-z0-9]{20,}`)},
	{SecretTypeGoogleKey, 0.95, regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}`)},
	{SecretTypeAWSKey, 0.95, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{SecretTypeGitHubToken, 0.95, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}`)},
	{SecretTypeJWT, 0.9, regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`)},
	{SecretTypePrivateKey, 0.99, regexp.MustCompile(`-----BEGIN\s+(?:RSA\s+|EC\s+|DSA\s+|OPENSSH\s+)?PRIVATE\s+KEY-----[\s\S]*?(?:-----END\s+(?:RSA\s+|EC\s+|DSA\s+|OPENSSH\s+)?PRIVATE\s+KEY-----|$)`)},
	{SecretTypeDatabaseURL, 0.95, regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^\s'"]+`)},
	{SecretTypeConnectionString, 0.9, regexp.MustCompile(`(?i)(?:Server|Host|Data\s+Source)=[^;\s]+;[^\n]*?Password=[^;\s]+`)},
	{SecretTypeBearerToken, 0.85, regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-\.=]{20,}`)},
	{SecretTypeAPIKey, 0.8, regexp.MustCompile(`(?i)\b(?:api[_\-]?key|x-api-key|key|secret|token|password)\s*[:=]\s*['"]?[A-Za-z0-9_\-\.]{16,}['"]?`)},
}

// ScanForLeaks returns every credential-shaped substring in text, sorted by
// position with overlaps resolved in favour of the more specific rule.
func ScanForLeaks(text string) []LeakDetection {
	var found []LeakDetection
	for _, rule := range secretRules {
		for _, loc := range rule.pattern.FindAllStringIndex(text, -1) {
			if overlapsAny(found, loc[0], loc[1]) {
				continue
			}
			found = append(found, LeakDetection{
				Type:       rule.kind,
				StartPos:   loc[0],
				EndPos:     loc[1],
				Confidence: rule.confidence,
			})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].StartPos < found[j].StartPos })
	return found
}

// HasLeaks reports whether text contains any credential-shaped substring
func HasLeaks(text string) bool {
	return len(ScanForLeaks(text)) > 0
}

// RedactSecrets replaces API keys, tokens and connection strings with a
// typed placeholder. Every log field that may carry model output or user
// text goes through here.
func RedactSecrets(text string) string {
	leaks := ScanForLeaks(text)
	if len(leaks) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, leak := range leaks {
		b.WriteString(text[pos:leak.StartPos])
		b.WriteString(redactionFor(leak.Type))
		pos = leak.EndPos
	}
	b.WriteString(text[pos:])
	return b.String()
}

func redactionFor(t SecretType) string {
	return "[" + strings.ToUpper(string(t)) + "_REDACTED]"
}

func overlapsAny(found []LeakDetection, start, end int) bool {
	for _, d := range found {
		if start < d.EndPos && end > d.StartPos {
			return true
		}
	}
	return false
}

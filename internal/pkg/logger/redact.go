package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com", short local parts are
// fully masked: "ab@example.com" → "***@example.com".
func RedactEmail(email string) string {
	name, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(name) > 2 {
		return name[:2] + "***@" + domain
	}
	return "***@" + domain
}

// RedactEmails masks every address of a recipient list.
func RedactEmails(emails []string) string {
	masked := make([]string, len(emails))
	for i, e := range emails {
		masked[i] = RedactEmail(e)
	}
	return strings.Join(masked, ",")
}

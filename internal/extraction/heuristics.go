package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jonathan/application-tracker/internal/mail"
	"github.com/jonathan/application-tracker/internal/types"
)

// Heuristics guesses company and role when the extractor cannot be used.
// Implementations must not panic and return "" when unsure.
type Heuristics interface {
	Company(msg types.Message) string
	Role(msg types.Message) string
}

// roleSuffixes are the title endings the subject patterns look for
const roleSuffixes = `(?:Engineer|Developer|Manager|Analyst|Designer|Specialist)`

var rolePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:for|to|as)\s+(?:the\s+)?([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*(?:\s+` + roleSuffixes + `))`),
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s+` + roleSuffixes + `)`),
}

// DefaultHeuristics derives the company from the sender's domain and the role from the subject
type DefaultHeuristics struct{}

// Company title-cases the first label of the sender's domain: jobs@techcorp.com -> Techcorp
func (DefaultHeuristics) Company(msg types.Message) string {
	domain := mail.SenderDomain(msg.Sender)
	if domain == "" {
		return ""
	}
	label, _, _ := strings.Cut(domain, ".")
	return titleCase(label)
}

// Role returns the first subject match of the role patterns, tried in order
func (DefaultHeuristics) Role(msg types.Message) string {
	for _, re := range rolePatterns {
		if m := re.FindStringSubmatch(msg.Subject); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// titleCase upper-cases the first letter of every letter run and lower-cases the rest
func titleCase(s string) string {
	var sb strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				sb.WriteRune(unicode.ToLower(r))
			} else {
				sb.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		sb.WriteRune(r)
		prevLetter = false
	}
	return sb.String()
}

package mail

import (
	"strings"

	gomail "github.com/emersion/go-message/mail"
)

// SenderAddress extracts the bare address from a From value.
// Accepts "Name <user@host>" and bare "user@host"; returns "" when no address is present.
func SenderAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	if addr, err := gomail.ParseAddress(sender); err == nil {
		return strings.ToLower(addr.Address)
	}

	// Lenient path for malformed headers
	if i := strings.LastIndex(sender, "<"); i >= 0 {
		rest := sender[i+1:]
		if j := strings.Index(rest, ">"); j >= 0 {
			rest = rest[:j]
		}
		sender = rest
	}
	sender = strings.TrimSpace(sender)
	if !strings.Contains(sender, "@") {
		return ""
	}
	return strings.ToLower(sender)
}

// SenderDomain returns the host part of the sender address, or ""
func SenderDomain(sender string) string {
	addr := SenderAddress(sender)
	i := strings.LastIndex(addr, "@")
	if i < 0 || i == len(addr)-1 {
		return ""
	}
	return addr[i+1:]
}

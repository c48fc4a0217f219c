package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane <Jane@TechCorp.com>", "jane@techcorp.com"},
		{"jobs@acme.io", "jobs@acme.io"},
		{`"Acme, Inc." <no-reply@acme.io>`, "no-reply@acme.io"},
		{"broken <jobs@globex.com", "jobs@globex.com"},
		{"No Address Here", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SenderAddress(tt.in))
		})
	}
}

func TestSenderDomain(t *testing.T) {
	assert.Equal(t, "techcorp.com", SenderDomain("Jane <jane@techcorp.com>"))
	assert.Equal(t, "mail.greenhouse.io", SenderDomain("no-reply@mail.greenhouse.io"))
	assert.Equal(t, "", SenderDomain("nobody"))
}

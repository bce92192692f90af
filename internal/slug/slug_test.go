package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Already a slug", "email-automation", "email-automation"},
		{"Spaces and punctuation", "Email  Automation!", "email-automation"},
		{"Leading and trailing noise", "  --CRM for Startups?? ", "crm-for-startups"},
		{"Tabs and newlines", "no\tcode\nbuilders", "no-code-builders"},
		{"Non ASCII dropped", "café booking", "caf-booking"},
		{"Only punctuation", "!!!", ""},
		{"Repeated hyphens", "a - b", "a-b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, q := range []string{"Email  Automation!", "Zapier vs. Make", "a--b"} {
		once := Normalize(q)
		assert.Equal(t, once, Normalize(once))
	}
}

package workflows

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveCompanyEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		firstName string
		lastName  string
		want      string
	}{
		{"plain ascii", "Jane", "Doe", "jane.doe@start-berlin.com"},
		{"german umlauts", "Sönke", "Müller", "soenke.mueller@start-berlin.com"},
		{"eszett", "Max", "Weiß", "max.weiss@start-berlin.com"},
		{"nordic letters", "Åse", "Østergård", "aase.oestergaard@start-berlin.com"},
		{"multi word last name", "Ana", "de la Cruz", "ana.de-la-cruz@start-berlin.com"},
		{"accents stripped", "José", "García", "jose.garcia@start-berlin.com"},
		{"surrounding whitespace", "  Jane ", " Doe  ", "jane.doe@start-berlin.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, DeriveCompanyEmail(tt.firstName, tt.lastName, "start-berlin.com"))
		})
	}
}

func TestGenerateRandomPassword(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)

	for range 16 {
		password, err := GenerateRandomPassword()
		require.NoError(t, err)

		assert.Len(t, password, 15)
		assert.False(t, seen[password], "passwords must not repeat")
		seen[password] = true

		for _, r := range password {
			assert.Contains(t, passwordCharset, string(r))
		}
	}
}

func TestNewWorkflowID(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)

	id := NewWorkflowID("jane.doe@start-berlin.com", now)
	assert.True(t, strings.HasPrefix(id, "wf_1700000000_"))
	assert.Len(t, id, len("wf_1700000000_")+8)

	assert.Equal(t, id, NewWorkflowID("jane.doe@start-berlin.com", now))
	assert.NotEqual(t, id, NewWorkflowID("john.doe@start-berlin.com", now))
	assert.NotEqual(t, id, NewWorkflowID("jane.doe@start-berlin.com", now.Add(time.Second)))
}

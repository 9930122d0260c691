package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"interview", CategoryInterview},
		{"  Offer.\n", CategoryOffer},
		{"Category: REJECTION", CategoryRejection},
		{"follow-up", CategoryFollowUp},
		{"Follow up", CategoryFollowUp},
		{"followup", CategoryFollowUp},
		{"newsletter, maybe spam", CategoryNewsletter},
		{"another thing entirely", CategoryOther},
		{"", CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseCategory(tt.in))
		})
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("urgent").Valid())
	assert.False(t, Category("").Valid())
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("done").Valid())

	assert.False(t, StatusPending.Settled())
	assert.True(t, StatusProcessed.Settled())
	assert.True(t, StatusError.Settled())
}

func TestNewPendingEmail(t *testing.T) {
	e := NewPendingEmail("acc-1", NormalizedEmail{
		UID:     "42",
		Subject: "Hello",
		Headers: map[string]string{"Message-Id": "<abc@example.com>"},
	})

	assert.Equal(t, "acc-1", e.AccountID)
	assert.Equal(t, StatusPending, e.Status)
	assert.Nil(t, e.Summary)
	assert.Nil(t, e.Category)
	assert.Nil(t, e.ProcessedAt)
	assert.Equal(t, "<abc@example.com>", e.MessageID())
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "a@example.com", Address{Address: "a@example.com"}.String())
	assert.Equal(t, "Ann <a@example.com>", Address{Name: "Ann", Address: "a@example.com"}.String())
}

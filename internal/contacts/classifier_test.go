package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/internal/domain"
)

func TestMatchesNumber(t *testing.T) {
	tests := []struct {
		phone, entry string
		want         bool
	}{
		{"34600000001", "34600000001", true},
		{"+34600000001", "34600000001", true},
		{"134600000001", "34600000001", true},
		{"34600000001", "4600000001", true},
		{"34600000001", "+34600000001", true},
		{"34600000001", "134600000001", true},
		{"34600000001", "+4600000001", false},
		{"34600000001", "34600000002", false},
		{"", "", false},
		{"3", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesNumber(tt.phone, tt.entry), "%q vs %q", tt.phone, tt.entry)
	}
}

func TestClassifyPriority(t *testing.T) {
	lists := config.ContactLists{
		Family:       []string{"34600000001"},
		CloseFriends: []string{"34600000001", "34600000002"},
		Colleagues:   []string{"34600000002", "34600000003"},
	}

	assert.Equal(t, domain.CategoryFamily, Classify("+34600000001", lists))
	assert.Equal(t, domain.CategoryCloseFriends, Classify("34600000002", lists))
	assert.Equal(t, domain.CategoryColleagues, Classify("34600000003", lists))
	assert.Equal(t, domain.CategoryStrangers, Classify("34600000009", lists))
}

func TestClassifyPrefixedListEntry(t *testing.T) {
	lists := config.ContactLists{Family: []string{"+34600000001"}}

	assert.Equal(t, domain.CategoryFamily, Classify("34600000001", lists))
	assert.Equal(t, domain.CategoryFamily, Classify("+34600000001", lists))
}

func TestClassifierReadsLiveProfile(t *testing.T) {
	src := config.StaticProfile(config.DefaultProfile())
	c := NewClassifier(src)

	assert.Equal(t, domain.CategoryStrangers, c.Classify("34600000001"))

	edited := config.DefaultProfile()
	edited.Contacts.Family = []string{"34600000001"}
	src.Replace(edited)

	assert.Equal(t, domain.CategoryFamily, c.Classify("34600000001"))
}

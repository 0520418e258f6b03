// Package contacts maps sender numbers to conversation categories.
package contacts

import (
	"whatsapp-concierge/internal/config"
	"whatsapp-concierge/internal/domain"
)

// MatchesNumber reports whether phone equals entry, or the two are equal once
// the leading character (a '+' or country prefix digit) of either is dropped.
func MatchesNumber(phone, entry string) bool {
	if phone == "" || entry == "" {
		return false
	}
	return phone == entry || phone[1:] == entry || entry[1:] == phone
}

// InList reports whether phone matches any entry of list.
func InList(phone string, list []string) bool {
	for _, entry := range list {
		if MatchesNumber(phone, entry) {
			return true
		}
	}
	return false
}

// Classifier resolves categories from the live profile on every call so
// allow-list edits apply to the next event.
type Classifier struct {
	profiles *config.ProfileSource
}

func NewClassifier(profiles *config.ProfileSource) *Classifier {
	return &Classifier{profiles: profiles}
}

// Classify returns the first matching category in priority order
// family > closeFriends > colleagues, defaulting to strangers.
func (c *Classifier) Classify(phone string) domain.Category {
	return Classify(phone, c.profiles.Current().Contacts)
}

func Classify(phone string, lists config.ContactLists) domain.Category {
	switch {
	case InList(phone, lists.Family):
		return domain.CategoryFamily
	case InList(phone, lists.CloseFriends):
		return domain.CategoryCloseFriends
	case InList(phone, lists.Colleagues):
		return domain.CategoryColleagues
	default:
		return domain.CategoryStrangers
	}
}

// Package eligibility decides whether the bot may answer an inbound event at all.
package eligibility

import (
	"slices"

	"whatsapp-concierge/internal/contacts"
	"whatsapp-concierge/pkg/models"
)

// Reason explains a decision; it is logged and used as a metrics label.
type Reason string

const (
	ReasonEligible    Reason = "eligible"
	ReasonWhitelisted Reason = "whitelisted"
	ReasonOwned       Reason = "owned_by_agent"
	ReasonSelf        Reason = "own_number"
	ReasonNotDirect   Reason = "not_direct_chat"
	ReasonSkipLabel   Reason = "skip_label"
	ReasonNotListed   Reason = "not_whitelisted"
	ReasonBlacklisted Reason = "blacklisted"
	ReasonBanned      Reason = "banned"
	ReasonBlocked     Reason = "blocked"
	ReasonArchived    Reason = "archived"
)

type Rules struct {
	Whitelist         []string
	Blacklist         []string
	SkipLabels        []string
	SkipArchivedChats bool
}

type Filter struct {
	rules Rules
}

func NewFilter(rules Rules) *Filter {
	return &Filter{rules: rules}
}

// CanReply applies the rules in order. Ownership, self-chat and chat type come
// before any list so they can never be overridden by list configuration.
func (f *Filter) CanReply(ev models.InboundEvent) (bool, Reason) {
	chat := ev.Chat

	if chat.Owner != nil && chat.Owner.Agent != "" {
		return false, ReasonOwned
	}
	if chat.FromNumber != "" && chat.FromNumber == ev.Device.Phone {
		return false, ReasonSelf
	}
	if chat.Type != models.ChatTypeDirect {
		return false, ReasonNotDirect
	}
	if len(f.rules.SkipLabels) > 0 {
		for _, label := range chat.Labels {
			if slices.Contains(f.rules.SkipLabels, label) {
				return false, ReasonSkipLabel
			}
		}
	}
	if len(f.rules.Whitelist) > 0 && chat.FromNumber != "" {
		if contacts.InList(chat.FromNumber, f.rules.Whitelist) {
			return true, ReasonWhitelisted
		}
		return false, ReasonNotListed
	}
	if len(f.rules.Blacklist) > 0 && contacts.InList(chat.FromNumber, f.rules.Blacklist) {
		return false, ReasonBlacklisted
	}
	if chat.Status == models.StatusBanned || chat.WaStatus == models.StatusBanned || chat.Contact.Status == models.StatusBanned {
		return false, ReasonBanned
	}
	if chat.Contact.Status == models.StatusBlocked {
		return false, ReasonBlocked
	}
	if f.rules.SkipArchivedChats && (chat.Status == models.StatusArchived || chat.WaStatus == models.StatusArchived) {
		return false, ReasonArchived
	}
	return true, ReasonEligible
}

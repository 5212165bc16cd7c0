package domain

import (
	"regexp"
	"time"
)

// Role classifies a bot party. It is fixed at creation and never changes.
type Role string

const (
	RoleClient     Role = "CLIENT"
	RoleContractor Role = "CONTRACTOR"
	RoleManager    Role = "MANAGER"
	RoleOwner      Role = "OWNER"
)

// PartyStatus enumerates activity states for parties.
type PartyStatus string

const (
	PartyStatusActive   PartyStatus = "ACTIVE"
	PartyStatusInactive PartyStatus = "INACTIVE"
)

var nickPattern = regexp.MustCompile(`^\w{5,32}$`)

// ValidNick reports whether a chat nickname is acceptable: 5 to 32 word characters.
func ValidNick(nick string) bool {
	return nickPattern.MatchString(nick)
}

// Party is a single chat identity known to the bot. Nick and ChatID, when both
// set, resolve to the same record; either may be used as the lookup key and the
// other is repaired on each interaction.
type Party struct {
	ID        string
	Nick      string
	ChatID    *int64
	Role      Role
	Status    PartyStatus
	BotState  *string
	CreatedAt time.Time
}

// IsActive reports whether the party may interact with the bot.
func (p *Party) IsActive() bool {
	return p.Status == PartyStatusActive
}

// Client is a party of RoleClient joined with its tariff attachment.
type Client struct {
	Party
	Paid   bool
	Tariff Tariff
}

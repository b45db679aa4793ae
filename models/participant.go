package models

// ParticipantRole определяет, может ли участник играть матчи.
type ParticipantRole string

const (
	RolePlayer   ParticipantRole = "player"
	RoleObserver ParticipantRole = "observer"
)

func (r ParticipantRole) Valid() bool {
	return r == RolePlayer || r == RoleObserver
}

// ParticipantStyle is a cosmetic classification shown next to the name.
type ParticipantStyle string

const (
	StyleMeta   ParticipantStyle = "meta"
	StyleCasual ParticipantStyle = "casual"
)

func (s ParticipantStyle) Valid() bool {
	return s == StyleMeta || s == StyleCasual
}

// Participant is a registered individual. Email is the stable identity
// resolved from the caller's token and is never exposed in JSON.
type Participant struct {
	ID    int              `json:"id" db:"id"`
	Name  string           `json:"name" db:"name"`
	Email string           `json:"-" db:"email"`
	Role  ParticipantRole  `json:"role" db:"role"`
	Style ParticipantStyle `json:"style" db:"style"`
}

func (p *Participant) IsPlayer() bool {
	return p != nil && p.Role == RolePlayer
}

package models

// MatchRecord is the stored shape of a match: participants are held by id
// only, names and styles are joined at read time.
type MatchRecord struct {
	ID        int   `json:"id" db:"id"`
	Round     int   `json:"round" db:"round"`
	Finished  bool  `json:"finished" db:"finished"`
	PlayerIDs []int `json:"player_ids" db:"-"`
	WinnerID  *int  `json:"winner_id,omitempty" db:"-"`
}

func (m *MatchRecord) HasPlayer(id int) bool {
	for _, pid := range m.PlayerIDs {
		if pid == id {
			return true
		}
	}
	return false
}

// Match is the enriched read model returned to callers.
type Match struct {
	ID         int            `json:"id"`
	Round      int            `json:"round"`
	Players    []*Participant `json:"players"`
	Winner     *Participant   `json:"winner"`
	IsFinished bool           `json:"is_finished"`
}

// Pairing is one desired match of a round: exactly two participant ids.
type Pairing struct {
	PlayerIDs []int `json:"player_ids"`
}

// BulkMatchInput is a single entry of the admin bulk-creation request.
type BulkMatchInput struct {
	Round     int `json:"round"`
	Player1ID int `json:"player1_id"`
	Player2ID int `json:"player2_id"`
}

// BulkCreateResult reports a partially successful bulk creation.
type BulkCreateResult struct {
	Success         bool     `json:"success"`
	CreatedMatchIDs []int    `json:"created_match_ids"`
	Errors          []string `json:"errors"`
}

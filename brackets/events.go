package brackets

import "strconv"

// Типы событий, отправляемых подписчикам раунда.
const (
	EventMatchCreated = "MATCH_CREATED"
	EventMatchUpdated = "MATCH_UPDATED"
	EventMatchDeleted = "MATCH_DELETED"
	EventMatchResult  = "MATCH_RESULT_REPORTED"
	EventRoundSynced  = "ROUND_SYNCED"
)

type WebSocketMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

// RoundRoom is the hub room carrying updates for one round.
func RoundRoom(round int) string {
	return "round_" + strconv.Itoa(round)
}

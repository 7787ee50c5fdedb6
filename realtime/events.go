package realtime

// Event types pushed into tournament rooms as the engine advances.
const (
	EventTournamentStarted   = "TOURNAMENT_STARTED"
	EventTournamentReset     = "TOURNAMENT_RESET"
	EventTournamentCancelled = "TOURNAMENT_CANCELLED"
	EventTournamentCompleted = "TOURNAMENT_COMPLETED"
	EventGroupStageCompleted = "GROUP_STAGE_COMPLETED"
	EventMatchStarted        = "MATCH_STARTED"
	EventMatchUpdated        = "MATCH_UPDATED"
	EventMatchCompleted      = "MATCH_COMPLETED"
	EventMapCompleted        = "MAP_COMPLETED"
)

// Event is one message delivered to every subscriber of a tournament room.
// Payload must be JSON-serializable.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
	RoomID  string      `json:"room_id,omitempty"`
}

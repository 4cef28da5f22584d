package server

// EventPayload is the JSON body of an audit-log event row.
type EventPayload struct {
	GameID      string `json:"game_id,omitempty"`
	DeckURL     string `json:"deck_url,omitempty"`
	PlayerID    string `json:"player_id,omitempty"`
	Username    string `json:"username,omitempty"`
	RoundNumber int    `json:"round_number,omitempty"`
	Call        int    `json:"call,omitempty"`
	WinnerID    string `json:"winner_id,omitempty"`
	Points      int    `json:"points,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

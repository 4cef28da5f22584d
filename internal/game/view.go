package game

import "slices"

// View is the per-player slice of a session's state. Project is the single
// choke point enforcing information asymmetry: nothing hidden from a player
// ever appears in their View.
type View struct {
	Players           []PlayerSummary `json:"players"`
	RoundNumber       int             `json:"roundNumber"`
	Call              *Card           `json:"call,omitempty"`
	RevealedResponses [][]Card        `json:"revealedResponses,omitempty"`
	Connected         []PlayerID      `json:"connected"`
	LastWinner        *Winner         `json:"lastWinner,omitempty"`
	IsHost            bool            `json:"isHost"`
	Hand              []Card          `json:"hand,omitempty"`
	Status            *Status         `json:"status,omitempty"`
	GameOver          bool            `json:"gameOver,omitempty"`
}

type PlayerSummary struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
	Status   Status `json:"status"`
}

type Winner struct {
	ID          PlayerID `json:"id"`
	Username    string   `json:"username"`
	RevealIndex int      `json:"revealIndex"`
}

func Project(st *State, forPlayer PlayerID) View {
	view := View{
		RoundNumber: st.RoundNumber,
		Connected:   slices.Clone(st.Connected),
		IsHost:      st.Host == forPlayer,
		GameOver:    st.Over,
	}
	if st.Call != nil {
		call := *st.Call
		view.Call = &call
	}

	ids := make([]PlayerID, 0, len(st.Players))
	for id := range st.Players {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	view.Players = make([]PlayerSummary, 0, len(ids))
	for _, id := range ids {
		player := st.Players[id]
		view.Players = append(view.Players, PlayerSummary{
			Username: player.Username,
			Points:   player.Points,
			Status:   player.Status,
		})
	}

	// Responses stay hidden until the reveal order exists.
	if st.Reveal != nil {
		view.RevealedResponses = make([][]Card, 0, len(st.Reveal))
		for _, id := range st.Reveal {
			view.RevealedResponses = append(view.RevealedResponses, slices.Clone(st.Responses[id]))
		}
	}

	if st.LastWinner != "" {
		if winner, ok := st.Players[st.LastWinner]; ok {
			view.LastWinner = &Winner{
				ID:          st.LastWinner,
				Username:    winner.Username,
				RevealIndex: slices.Index(st.Reveal, st.LastWinner),
			}
		}
	}

	if player, ok := st.Players[forPlayer]; ok {
		view.Hand = slices.Clone(player.Hand)
		status := player.Status
		view.Status = &status
	}
	return view
}

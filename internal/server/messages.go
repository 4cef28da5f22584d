package server

import "card-czar/internal/game"

// clientMessage is the wire form of the client event union. Type selects the
// variant; the other fields are variant payloads.
type clientMessage struct {
	Type        string      `json:"type"`
	Username    string      `json:"username,omitempty"`
	Response    []game.Card `json:"response,omitempty"`
	PickedIndex int         `json:"pickedIndex,omitempty"`
}

type serverMessage struct {
	Type    string     `json:"type"`
	ID      string     `json:"id,omitempty"`
	Token   string     `json:"token,omitempty"`
	DeckURL string     `json:"deckUrl,omitempty"`
	State   *game.View `json:"state,omitempty"`
	Message string     `json:"message,omitempty"`
}

func toEvent(m clientMessage) (game.Event, bool) {
	switch m.Type {
	case "join":
		return game.Join{Username: m.Username}, true
	case "start":
		return game.Start{}, true
	case "response":
		return game.Submit{Cards: m.Response}, true
	case "pick":
		return game.Pick{RevealIndex: m.PickedIndex}, true
	default:
		return nil, false
	}
}

func initMessage(playerID game.PlayerID, token, deckURL string) serverMessage {
	return serverMessage{Type: "init", ID: string(playerID), Token: token, DeckURL: deckURL}
}

func stateMessage(view game.View) serverMessage {
	return serverMessage{Type: "state", State: &view}
}

func errorMessage(message string) serverMessage {
	return serverMessage{Type: "error", Message: message}
}

package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"card-czar/internal/config"
	"card-czar/internal/game"

	"github.com/gorilla/websocket"
)

func wsURL(srv *httptest.Server, gameID, query string) string {
	base := "ws" + strings.TrimPrefix(srv.URL, "http")
	return base + "/ws/games/" + gameID + query
}

func dialGame(t *testing.T, srv *httptest.Server, gameID, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, gameID, query), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", gameID, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

// readInit skips state broadcasts that may race ahead of the init frame.
func readInit(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readServerMessage(t, conn)
		if msg.Type == "init" {
			if msg.ID == "" || msg.Token == "" {
				t.Fatalf("incomplete init: %+v", msg)
			}
			return msg
		}
	}
	t.Fatal("no init message")
	return serverMessage{}
}

// waitForState reads until a state broadcast satisfies the predicate.
func waitForState(t *testing.T, conn *websocket.Conn, describe string, pred func(*game.View) bool) *game.View {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		msg := readServerMessage(t, conn)
		if msg.Type != "state" || msg.State == nil {
			continue
		}
		if pred(msg.State) {
			return msg.State
		}
	}
	t.Fatalf("no state matching: %s", describe)
	return nil
}

func waitForError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readServerMessage(t, conn)
		if msg.Type == "error" {
			return msg.Message
		}
	}
	t.Fatal("no error message")
	return ""
}

func sendMessage(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func deckQuery(deckSrv *httptest.Server) string {
	return "?deck=" + url.QueryEscape(deckSrv.URL)
}

func TestWebsocketFullRound(t *testing.T) {
	deckSrv := newDeckServer(t)
	cfg := config.Default()
	cfg.RoundEndDelayMillis = 50
	_, srv := newTestServer(t, cfg)

	host := dialGame(t, srv, "room-1", deckQuery(deckSrv))
	hostInit := readInit(t, host)
	if hostInit.DeckURL != deckSrv.URL {
		t.Fatalf("init deckUrl = %q, want %q", hostInit.DeckURL, deckSrv.URL)
	}
	sendMessage(t, host, clientMessage{Type: "join", Username: "alice"})

	second := dialGame(t, srv, "room-1", "")
	readInit(t, second)
	sendMessage(t, second, clientMessage{Type: "join", Username: "bob"})

	third := dialGame(t, srv, "room-1", "")
	readInit(t, third)
	sendMessage(t, third, clientMessage{Type: "join", Username: "carol"})

	waitForState(t, host, "three players joined", func(v *game.View) bool {
		return len(v.Players) == 3
	})

	// Only the host can start.
	sendMessage(t, second, clientMessage{Type: "start"})
	if msg := waitForError(t, second); msg != "only host can start" {
		t.Fatalf("error message = %q", msg)
	}

	sendMessage(t, host, clientMessage{Type: "start"})

	conns := []*websocket.Conn{host, second, third}
	views := make([]*game.View, 3)
	for i, conn := range conns {
		views[i] = waitForState(t, conn, "round one started", func(v *game.View) bool {
			return v.RoundNumber == 1 && v.Status != nil
		})
	}

	var judge *websocket.Conn
	var responders []*websocket.Conn
	var responderHands [][]game.Card
	for i, view := range views {
		switch *view.Status {
		case game.StatusPicking:
			judge = conns[i]
			if len(view.Hand) != 0 {
				t.Fatalf("judge holds a hand: %v", view.Hand)
			}
		case game.StatusResponding:
			responders = append(responders, conns[i])
			responderHands = append(responderHands, view.Hand)
			if len(view.Hand) != cfg.HandSize {
				t.Fatalf("responder hand = %d cards, want %d", len(view.Hand), cfg.HandSize)
			}
			if view.Call == nil {
				t.Fatal("responder view missing call")
			}
			if view.RevealedResponses != nil {
				t.Fatal("responses visible before reveal")
			}
		default:
			t.Fatalf("unexpected status %v in round one", *view.Status)
		}
	}
	if judge == nil || len(responders) != 2 {
		t.Fatalf("role split broken: judge=%v responders=%d", judge != nil, len(responders))
	}

	for i, conn := range responders {
		sendMessage(t, conn, clientMessage{Type: "response", Response: []game.Card{responderHands[i][0]}})
	}

	revealed := waitForState(t, judge, "responses revealed", func(v *game.View) bool {
		return v.RevealedResponses != nil
	})
	if len(revealed.RevealedResponses) != 2 {
		t.Fatalf("revealed %d responses, want 2", len(revealed.RevealedResponses))
	}

	sendMessage(t, judge, clientMessage{Type: "pick", PickedIndex: 0})
	won := waitForState(t, judge, "winner picked", func(v *game.View) bool {
		return v.LastWinner != nil
	})
	if won.LastWinner.RevealIndex != 0 {
		t.Fatalf("winner revealIndex = %d, want 0", won.LastWinner.RevealIndex)
	}

	// The scheduled advance rolls the next round on its own.
	next := waitForState(t, host, "round two started", func(v *game.View) bool {
		return v.RoundNumber == 2
	})
	if next.LastWinner != nil || next.RevealedResponses != nil {
		t.Fatal("round state not cleared in round two")
	}
}

func TestWebsocketReconnectWithToken(t *testing.T) {
	deckSrv := newDeckServer(t)
	_, srv := newTestServer(t, config.Default())

	host := dialGame(t, srv, "room-2", deckQuery(deckSrv))
	readInit(t, host)
	sendMessage(t, host, clientMessage{Type: "join", Username: "alice"})

	second := dialGame(t, srv, "room-2", "")
	secondInit := readInit(t, second)
	sendMessage(t, second, clientMessage{Type: "join", Username: "bob"})
	waitForState(t, host, "both joined", func(v *game.View) bool {
		return len(v.Players) == 2
	})

	second.Close()
	waitForState(t, host, "bob disconnected", func(v *game.View) bool {
		return len(v.Connected) == 1
	})

	resumed := dialGame(t, srv, "room-2", "?token="+secondInit.Token)
	resumedInit := readInit(t, resumed)
	if resumedInit.ID != secondInit.ID {
		t.Fatalf("reconnect id = %s, want %s", resumedInit.ID, secondInit.ID)
	}
	sendMessage(t, resumed, clientMessage{Type: "join", Username: "bob"})
	waitForState(t, host, "bob back", func(v *game.View) bool {
		return len(v.Connected) == 2
	})
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	deckSrv := newDeckServer(t)
	_, srv := newTestServer(t, config.Default())

	host := dialGame(t, srv, "room-3", deckQuery(deckSrv))
	readInit(t, host)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "room-3", "?token=bogus"), nil)
	if err == nil {
		t.Fatal("dial with bad token succeeded")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("status = %v, want 403", resp)
	}
}

func TestWebsocketRequiresDeckForNewSession(t *testing.T) {
	_, srv := newTestServer(t, config.Default())
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "room-4", ""), nil)
	if err == nil {
		t.Fatal("dial without deck succeeded")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("status = %v, want 400", resp)
	}
}

func TestWebsocketClosesOnMalformedFrame(t *testing.T) {
	deckSrv := newDeckServer(t)
	_, srv := newTestServer(t, config.Default())

	conn := dialGame(t, srv, "room-5", deckQuery(deckSrv))
	readInit(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatal("connection still open after malformed frame")
		}
		return
	}
}

func TestWebsocketIgnoresUnknownMessageType(t *testing.T) {
	deckSrv := newDeckServer(t)
	_, srv := newTestServer(t, config.Default())

	conn := dialGame(t, srv, "room-6", deckQuery(deckSrv))
	readInit(t, conn)

	sendMessage(t, conn, clientMessage{Type: "bogus"})
	sendMessage(t, conn, clientMessage{Type: "join", Username: "alice"})
	waitForState(t, conn, "join after unknown type", func(v *game.View) bool {
		return len(v.Players) == 1
	})
}

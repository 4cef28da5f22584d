package game

import (
	"math/rand"
	"slices"
	"time"
)

// Apply mutates state and deck according to one event from actor. It must be
// called under the session lock. Invalid moves are silent no-ops; only
// ErrNotHost is worth echoing back to the client, and ErrCorruptState means
// the state machine itself is broken.
func Apply(ev Event, st *State, deck *DeckState, def Definition, actor PlayerID, now time.Time, rng *rand.Rand) (Effects, error) {
	switch ev := ev.(type) {
	case Join:
		applyJoin(st, actor, ev.Username)
		return Effects{}, nil

	case Leave:
		applyLeave(st, actor, rng)
		return Effects{}, nil

	case Start:
		if st.Host != actor {
			return Effects{}, ErrNotHost
		}
		if st.Over || st.RoundNumber != 0 || len(st.Players) == 0 {
			return Effects{}, nil
		}
		shuffleCards(deck.Calls, rng)
		shuffleCards(deck.Responses, rng)
		advanceRound(st, deck, def, now, rng)
		return Effects{}, nil

	case Submit:
		applySubmit(st, actor, ev.Cards, rng)
		return Effects{}, nil

	case Pick:
		return applyPick(st, actor, ev.RevealIndex, now)

	case Advance:
		if st.Over || st.RoundNumber == 0 {
			return Effects{}, nil
		}
		if st.LastRoundStarted.After(ev.NotChangedSince) {
			// A round already started after this timer was scheduled.
			return Effects{}, nil
		}
		advanceRound(st, deck, def, now, rng)
		return Effects{}, nil
	}
	return Effects{}, nil
}

func applyJoin(st *State, actor PlayerID, username string) {
	if player, ok := st.Players[actor]; ok {
		if player.Status == StatusDisconnected {
			player.Status = StatusWaiting
		}
		return
	}
	st.Players[actor] = &Player{Username: username, Status: StatusWaiting}
}

func applyLeave(st *State, actor PlayerID, rng *rand.Rand) {
	if i := slices.Index(st.Connected, actor); i >= 0 {
		st.Connected = slices.Delete(st.Connected, i, i+1)
	}
	if len(st.Connected) > 0 && st.Host == actor {
		st.Host = st.Connected[0]
	}
	player, ok := st.Players[actor]
	if !ok || player.Status == StatusDisconnected {
		return
	}
	if player.Status == StatusPicking && len(st.Connected) > 0 {
		// Hand the judge role to the host and seed an empty response so
		// reveal readiness is not blocked waiting on a phantom responder.
		if host, ok := st.Players[st.Host]; ok {
			host.Status = StatusPicking
			if _, ok := st.Responses[st.Host]; !ok {
				st.Responses[st.Host] = []Card{}
			}
		}
	}
	player.Status = StatusDisconnected
	checkReveal(st, rng)
}

func applySubmit(st *State, actor PlayerID, cards []Card, rng *rand.Rand) {
	if st.Over || st.RoundNumber == 0 {
		return
	}
	player, ok := st.Players[actor]
	if !ok || player.Status != StatusResponding {
		return
	}
	if _, submitted := st.Responses[actor]; submitted {
		return
	}
	seen := make(map[Card]struct{}, len(cards))
	for _, card := range cards {
		if _, dup := seen[card]; dup {
			return
		}
		seen[card] = struct{}{}
		if !slices.Contains(player.Hand, card) {
			return
		}
	}
	player.Hand = slices.DeleteFunc(player.Hand, func(c Card) bool {
		_, ok := seen[c]
		return ok
	})
	st.Responses[actor] = slices.Clone(cards)
	player.Status = StatusFinished
	checkReveal(st, rng)
}

func applyPick(st *State, actor PlayerID, revealIndex int, now time.Time) (Effects, error) {
	if st.Over || st.RoundNumber == 0 {
		return Effects{}, nil
	}
	player, ok := st.Players[actor]
	if !ok || player.Status != StatusPicking {
		return Effects{}, nil
	}
	if st.Reveal == nil || st.LastWinner != "" {
		return Effects{}, nil
	}
	if revealIndex < 0 || revealIndex >= len(st.Reveal) {
		return Effects{}, nil
	}
	picked := st.Reveal[revealIndex]
	if _, ok := st.Responses[picked]; !ok {
		return Effects{}, ErrCorruptState
	}
	st.Players[picked].Points++
	st.LastWinner = picked
	return Effects{ScheduleAdvance: true, NotChangedSince: now}, nil
}

// advanceRound starts the next round: fresh prompt, judge rotation, hands
// topped up. When the call pile runs dry the session ends instead of
// degrading to an undefined prompt.
func advanceRound(st *State, deck *DeckState, def Definition, now time.Time, rng *rand.Rand) {
	st.RoundNumber++
	st.Reveal = nil
	st.Responses = make(map[PlayerID][]Card)
	st.LastWinner = ""

	if len(deck.Calls) == 0 {
		endSession(st, now)
		return
	}
	call := deck.Calls[len(deck.Calls)-1]
	deck.Calls = deck.Calls[:len(deck.Calls)-1]
	st.Call = &call

	previousIndex := 0
	var previousJudge PlayerID
	for id, player := range st.Players {
		if player.Status == StatusPicking {
			previousJudge = id
			player.Status = StatusFinished
		}
	}
	if previousJudge != "" {
		if i := slices.Index(st.Connected, previousJudge); i >= 0 {
			previousIndex = i
		}
	}
	if len(st.Connected) == 0 {
		return
	}
	next := st.Connected[(previousIndex+1)%len(st.Connected)]
	if judge, ok := st.Players[next]; ok {
		judge.Status = StatusPicking
	}

	for _, player := range st.Players {
		if player.Status == StatusDisconnected || player.Status == StatusPicking {
			continue
		}
		player.Status = StatusResponding
		dealHand(player, deck, def)
	}
	st.LastRoundStarted = now
}

func endSession(st *State, now time.Time) {
	st.Over = true
	st.Call = nil
	for _, player := range st.Players {
		if player.Status != StatusDisconnected {
			player.Status = StatusWaiting
		}
	}
	st.LastRoundStarted = now
}

func dealHand(player *Player, deck *DeckState, def Definition) {
	if len(player.Hand) >= def.HandSize {
		return
	}
	amount := def.HandSize - len(player.Hand)
	if amount > len(deck.Responses) {
		amount = len(deck.Responses)
	}
	player.Hand = append(player.Hand, deck.Responses[:amount]...)
	deck.Responses = deck.Responses[amount:]
}

// checkReveal populates the reveal order once nobody is left responding.
// The order is shuffled exactly once; later events never reshuffle it, so
// reveal indexes stay stable for the judge.
func checkReveal(st *State, rng *rand.Rand) {
	if st.RoundNumber == 0 || st.Reveal != nil {
		return
	}
	for _, player := range st.Players {
		if player.Status == StatusResponding {
			return
		}
	}
	ids := make([]PlayerID, 0, len(st.Responses))
	for id := range st.Responses {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	shuffleIDs(ids, rng)
	st.Reveal = ids
}

// Fisher-Yates via math/rand.
func shuffleCards(cards []Card, rng *rand.Rand) {
	rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

func shuffleIDs(ids []PlayerID, rng *rand.Rand) {
	rng.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

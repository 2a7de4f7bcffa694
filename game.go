/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Game walks each room through its phases. Every method with the Locked
// suffix assumes the caller holds room.mu; timer expiries and hold timers
// re-enter through withRoom so they serialise with inbound events.
type Game struct {
	rooms   *RoomManager
	prompts PromptSource
	timers  *timerManager
	emit    emitter
	hold    holds
}

func newGame(rooms *RoomManager, prompts PromptSource, emit emitter) *Game {
	return &Game{
		rooms:   rooms,
		prompts: prompts,
		timers:  newTimerManager(emit),
		emit:    emit,
		hold:    defaultHolds(),
	}
}

func (g *Game) withRoom(room *Room, fn func()) {
	room.mu.Lock()
	defer room.mu.Unlock()

	fn()
}

// afterHold schedules a presentation pause; fn runs with room.mu held and
// must re-check state, since anything may have happened during the hold.
// While the room is paused the hold is deferred, re-checking each second.
func (g *Game) afterHold(room *Room, d time.Duration, fn func()) {
	time.AfterFunc(d, func() {
		g.withRoom(room, func() {
			if room.Paused {
				g.afterHold(room, time.Second, fn)
				return
			}
			fn()
		})
	})
}

// callbackFor resolves the expiry action for a state, used both when arming
// timers and when resuming from pause. Resumption must not capture stale
// closures; the state alone determines the action.
func (g *Game) callbackFor(room *Room, state roomState) func() {
	return func() {
		g.withRoom(room, func() {
			g.expiryLocked(room, state)
		})
	}
}

func (g *Game) expiryLocked(room *Room, state roomState) {
	switch state {
	case statePrompt:
		g.answerTimeUpLocked(room)
	case stateVoting:
		g.voteTimeUpLocked(room, room.CurrentMatchupIndex)
	case stateLastLash:
		g.lastLashTimeUpLocked(room)
	case stateLastLashVoting:
		g.finishLastLashLocked(room)
	}
}

type gameStartedPayload struct {
	RoomCode string `json:"roomCode"`
	Theme    string `json:"theme,omitempty"`
}

func (g *Game) startGameLocked(room *Room, theme string) error {
	if room.State != stateLobby {
		return errGameInProgress
	}
	if len(room.Players) < minPlayers {
		return errNotEnough
	}

	theme = strings.TrimSpace(theme)
	if len(theme) > maxThemeLength {
		theme = theme[:maxThemeLength]
	}
	room.Theme = theme
	room.CurrentRound = 0

	log.Info().Str("room", room.Code).Int("players", len(room.Players)).Str("theme", theme).Msg("game started")

	g.emit.toRoom(room.Code, evGameStarted, gameStartedPayload{RoomCode: room.Code, Theme: theme})

	g.beginRoundLocked(room)

	return nil
}

func (g *Game) beginRoundLocked(room *Room) {
	room.CurrentRound++
	room.State = statePrompt
	room.CurrentMatchupIndex = 0

	for _, p := range room.Players {
		p.AnswersSubmitted = 0
		p.HasVoted = make(map[string]bool)
	}

	texts, _ := g.prompts.GeneratePrompts(context.Background(), promptCount(len(room.Players)), room.UsedPromptTexts, room.Theme)
	room.Prompts = pairPrompts(room.Players, texts, room.CurrentRound)

	log.Debug().Str("room", room.Code).Int("round", room.CurrentRound).Int("prompts", len(room.Prompts)).Msg("round begins")

	g.emit.toHost(room, evPromptPhase, promptPhasePayload{
		Round:       room.CurrentRound,
		TotalRounds: roundsPerGame,
		PlayerCount: len(room.Players),
	})

	for _, p := range room.Players {
		assigned := make([]assignedPrompt, 0, len(p.PromptsAssigned))
		for _, id := range p.PromptsAssigned {
			if q := room.prompt(id); q != nil {
				assigned = append(assigned, assignedPrompt{ID: q.ID, Text: q.Text})
			}
		}
		g.emit.toConn(p.ConnID, evReceivePrompts, receivePromptsPayload{
			Prompts:   assigned,
			TimeLimit: int(answerTime.Seconds()),
		})
	}

	g.timers.arm(room, answerTime, g.callbackFor(room, statePrompt))
}

func (g *Game) submitAnswerLocked(room *Room, playerID, promptID, text string) error {
	if room.State != statePrompt {
		return errWrongState
	}

	player := room.player(playerID)
	if player == nil {
		return errNotInRoom
	}

	q := room.prompt(promptID)
	if q == nil {
		return errPromptNotFound
	}
	if !q.assignedTo(playerID) {
		return errNotAssigned
	}

	switch playerID {
	case q.Player1ID:
		if q.Player1Answer != "" {
			return errAlreadySubmit
		}
		q.Player1Answer = sanitizeAnswer(text)
	case q.Player2ID:
		if q.Player2Answer != "" {
			return errAlreadySubmit
		}
		q.Player2Answer = sanitizeAnswer(text)
	}

	player.AnswersSubmitted++

	g.emit.toHost(room, evPlayerSubmitted, playerProgressPayload{
		PlayerID:  player.ID,
		Name:      player.Name,
		Completed: player.AnswersSubmitted,
		Total:     len(player.PromptsAssigned),
	})

	if g.allAnswersInLocked(room) {
		g.timers.cancel(room.Code)
		g.beginVotingLocked(room)
	}

	return nil
}

func (g *Game) allAnswersInLocked(room *Room) bool {
	for _, q := range room.Prompts {
		if q.Player1Answer == "" || q.Player2Answer == "" {
			return false
		}
	}
	return true
}

// answerTimeUpLocked sweeps unanswered sides with the no-answer sentinel so
// the phase always makes forward progress.
func (g *Game) answerTimeUpLocked(room *Room) {
	if room.State != statePrompt {
		return
	}

	g.sweepAnswersLocked(room, noAnswer)
	g.beginVotingLocked(room)
}

func (g *Game) sweepAnswersLocked(room *Room, sentinel string) {
	for _, q := range room.Prompts {
		if q.Player1Answer == "" {
			q.Player1Answer = sentinel
		}
		if q.Player2Answer == "" {
			q.Player2Answer = sentinel
		}
	}
}

func (g *Game) beginVotingLocked(room *Room) {
	room.State = stateVoting
	room.CurrentMatchupIndex = 0

	for _, p := range room.Players {
		p.HasVoted = make(map[string]bool)
	}

	g.emit.toRoom(room.Code, evVotingPhase, votingPhasePayload{MatchupCount: len(room.Prompts)})

	g.afterHold(room, g.hold.matchupIntro, func() {
		if room.State == stateVoting && room.CurrentMatchupIndex == 0 {
			g.presentMatchupLocked(room)
		}
	})
}

func (g *Game) matchupPayloadLocked(room *Room, q *Prompt, idx int) voteMatchupPayload {
	name := func(id string) string {
		if p := room.player(id); p != nil {
			return p.Name
		}
		return ""
	}

	return voteMatchupPayload{
		PromptID:      q.ID,
		PromptText:    q.Text,
		Answer1:       q.Player1Answer,
		Answer2:       q.Player2Answer,
		Player1ID:     q.Player1ID,
		Player2ID:     q.Player2ID,
		Player1Name:   name(q.Player1ID),
		Player2Name:   name(q.Player2ID),
		MatchupIndex:  idx,
		TotalMatchups: len(room.Prompts),
	}
}

func (g *Game) presentMatchupLocked(room *Room) {
	idx := room.CurrentMatchupIndex
	if idx >= len(room.Prompts) {
		g.beginScoringLocked(room)
		return
	}

	q := room.Prompts[idx]
	q.presented = true
	g.emit.toRoom(room.Code, evVoteMatchup, g.matchupPayloadLocked(room, q, idx))

	g.timers.arm(room, voteTime, func() {
		g.withRoom(room, func() {
			g.voteTimeUpLocked(room, idx)
		})
	})
}

func (g *Game) voteTimeUpLocked(room *Room, idx int) {
	if room.State != stateVoting || room.CurrentMatchupIndex != idx {
		return
	}
	if idx >= len(room.Prompts) || !room.Prompts[idx].presented || room.Prompts[idx].scored {
		return
	}

	g.finishMatchupLocked(room)
}

func (g *Game) submitVoteLocked(room *Room, voterID, promptID string, choice int) error {
	if room.State != stateVoting {
		return errWrongState
	}

	voter := room.player(voterID)
	if voter == nil {
		return errNotInRoom
	}

	q := room.prompt(promptID)
	if q == nil {
		return errPromptNotFound
	}

	switch {
	case room.CurrentMatchupIndex >= len(room.Prompts) || room.Prompts[room.CurrentMatchupIndex] != q || !q.presented || q.scored:
		return errWrongState
	case q.assignedTo(voterID):
		return errOwnMatchup
	case voter.HasVoted[promptID]:
		return errAlreadyVoted
	case choice != 1 && choice != 2:
		return errInvalidVote
	}

	if choice == 1 {
		q.Player1Votes++
	} else {
		q.Player2Votes++
	}
	voter.HasVoted[promptID] = true

	g.emit.toHost(room, evPlayerVoted, playerProgressPayload{
		PlayerID:  voter.ID,
		Name:      voter.Name,
		Completed: q.Player1Votes + q.Player2Votes,
		Total:     room.eligibleVoters(),
	})

	if q.Player1Votes+q.Player2Votes >= room.eligibleVoters() && !q.scored {
		g.timers.cancel(room.Code)
		g.finishMatchupLocked(room)
	}

	return nil
}

func (g *Game) finishMatchupLocked(room *Room) {
	idx := room.CurrentMatchupIndex
	q := room.Prompts[idx]

	score := applyMatchupScore(room, q)

	g.emit.toRoom(room.Code, evMatchupResult, matchupResultPayload{
		voteMatchupPayload: g.matchupPayloadLocked(room, q, idx),
		Player1Votes:       q.Player1Votes,
		Player2Votes:       q.Player2Votes,
		Player1Points:      score.Player1Points,
		Player2Points:      score.Player2Points,
		IsJinx:             score.IsJinx,
		Quipwit:            score.Quipwit,
		Scoreboard:         room.scoreboard(),
	})

	room.CurrentMatchupIndex++
	next := room.CurrentMatchupIndex

	g.afterHold(room, g.hold.matchupResult, func() {
		if room.State == stateVoting && room.CurrentMatchupIndex == next {
			g.presentMatchupLocked(room)
		}
	})
}

func (g *Game) beginScoringLocked(room *Room) {
	room.State = stateScoring

	g.emit.toRoom(room.Code, evRoundScores, roundScoresPayload{
		Round:      room.CurrentRound,
		Scoreboard: room.scoreboard(),
	})

	g.afterHold(room, g.hold.roundScores, func() {
		if room.State != stateScoring {
			return
		}
		if room.CurrentRound < roundsPerGame {
			g.beginRoundLocked(room)
		} else {
			g.beginLastLashLocked(room)
		}
	})
}

func (g *Game) beginLastLashLocked(room *Room) {
	room.State = stateLastLash

	ll, _ := g.prompts.GenerateLastLash(context.Background(), room.UsedPromptTexts, room.Theme)
	room.LastLash = &lastLash{
		Prompt:       ll.Prompt,
		Mode:         ll.Mode,
		Letters:      ll.Letters,
		Instructions: ll.Instructions,
		Votes:        make(map[string]string),
	}

	log.Debug().Str("room", room.Code).Str("mode", string(ll.Mode)).Msg("finale begins")

	g.emit.toRoom(room.Code, evLastWitModeReveal, struct {
		Mode lastLashMode `json:"mode"`
	}{ll.Mode})

	payload := lastLashPhasePayload{
		Prompt:       ll.Prompt,
		Mode:         ll.Mode,
		Letters:      ll.Letters,
		Instructions: ll.Instructions,
		TimeLimit:    int(lastLashAnswerTime.Seconds()),
	}

	g.emit.toHost(room, evLastLashPhase, payload)
	for _, p := range room.Players {
		g.emit.toConn(p.ConnID, evLastLashPrompt, payload)
	}

	g.timers.arm(room, lastLashAnswerTime, g.callbackFor(room, stateLastLash))
}

func (g *Game) submitLastLashAnswerLocked(room *Room, playerID, text string) error {
	if room.State != stateLastLash {
		return errWrongState
	}

	player := room.player(playerID)
	if player == nil {
		return errNotInRoom
	}

	ll := room.LastLash
	if ll.answerFor(playerID) != nil {
		return errAlreadySubmit
	}

	answer := sanitizeAnswer(text)
	ll.Answers = append(ll.Answers, &lastLashAnswer{
		PlayerID: playerID,
		Answer:   answer,
		Warning:  validateFinaleAnswer(ll, answer),
	})

	g.emit.toHost(room, evPlayerSubmitted, playerProgressPayload{
		PlayerID:  player.ID,
		Name:      player.Name,
		Completed: 1,
		Total:     1,
	})

	if len(ll.Answers) >= len(room.Players) {
		g.timers.cancel(room.Code)
		g.beginLastLashVotingLocked(room)
	}

	return nil
}

func (g *Game) lastLashTimeUpLocked(room *Room) {
	if room.State != stateLastLash {
		return
	}

	for _, p := range room.Players {
		if room.LastLash.answerFor(p.ID) == nil {
			room.LastLash.Answers = append(room.LastLash.Answers, &lastLashAnswer{
				PlayerID: p.ID,
				Answer:   noAnswer,
			})
		}
	}

	g.beginLastLashVotingLocked(room)
}

func (g *Game) beginLastLashVotingLocked(room *Room) {
	room.State = stateLastLashVoting

	ll := room.LastLash
	rand.Shuffle(len(ll.Answers), func(i, j int) {
		ll.Answers[i], ll.Answers[j] = ll.Answers[j], ll.Answers[i]
	})

	entries := make([]lastLashEntry, 0, len(ll.Answers))
	for _, a := range ll.Answers {
		entries = append(entries, lastLashEntry{
			PlayerID: a.PlayerID,
			Answer:   a.Answer,
			Warning:  a.Warning,
		})
	}

	g.emit.toRoom(room.Code, evLastLashVoting, lastLashVotingPayload{Answers: entries})

	g.timers.arm(room, lastLashVoteTime, g.callbackFor(room, stateLastLashVoting))
}

func (g *Game) submitLastLashVoteLocked(room *Room, voterID, targetID string) error {
	if room.State != stateLastLashVoting {
		return errWrongState
	}

	voter := room.player(voterID)
	if voter == nil {
		return errNotInRoom
	}

	ll := room.LastLash

	switch {
	case ll.Votes[voterID] != "":
		return errAlreadyVoted
	case targetID == voterID:
		return errCannotVoteSelf
	case ll.answerFor(targetID) == nil:
		return errInvalidTarget
	}

	ll.Votes[voterID] = targetID

	g.emit.toHost(room, evPlayerVoted, playerProgressPayload{
		PlayerID:  voter.ID,
		Name:      voter.Name,
		Completed: len(ll.Votes),
		Total:     len(room.Players),
	})

	if len(ll.Votes) >= len(room.Players) {
		g.timers.cancel(room.Code)
		g.finishLastLashLocked(room)
	}

	return nil
}

func (g *Game) finishLastLashLocked(room *Room) {
	if room.State != stateLastLashVoting || room.LastLash.scored {
		return
	}
	room.LastLash.scored = true

	sorted := applyLastLashScores(room)

	results := make([]lastLashResult, 0, len(sorted))
	for _, a := range sorted {
		name := ""
		if p := room.player(a.PlayerID); p != nil {
			name = p.Name
		}
		results = append(results, lastLashResult{
			PlayerID: a.PlayerID,
			Name:     name,
			Answer:   a.Answer,
			Votes:    a.Votes,
			Points:   a.Points,
			IsWinner: a.IsWinner,
		})
	}

	g.emit.toRoom(room.Code, evLastLashResults, lastLashResultsPayload{
		Answers:    results,
		Scoreboard: room.scoreboard(),
	})

	// Results hold; the host can cut it short with continue_last_wit.
	g.afterHold(room, g.hold.finaleResults, func() {
		g.gameOverLocked(room)
	})
}

func (g *Game) gameOverLocked(room *Room) {
	if room.State == stateGameOver {
		return
	}

	g.timers.cancel(room.Code)
	room.State = stateGameOver

	winners := make([]scoreEntry, 0, 1)
	for _, p := range room.winners() {
		winners = append(winners, scoreEntry{PlayerID: p.ID, Name: p.Name, Score: room.Scores[p.ID]})
	}

	log.Info().Str("room", room.Code).Int("winners", len(winners)).Msg("game over")

	g.emit.toRoom(room.Code, evGameOver, gameOverPayload{
		Winners:    winners,
		Scoreboard: room.scoreboard(),
	})
}

// endGameLocked handles the host's early termination from any non-terminal
// state; in GAME_OVER further game events are ignored.
func (g *Game) endGameLocked(room *Room) {
	g.gameOverLocked(room)
}

// skipPlayerLocked force-fills a player's outstanding inputs so the room is
// never held hostage by one device.
func (g *Game) skipPlayerLocked(room *Room, playerID string) {
	switch room.State {
	case statePrompt:
		for _, q := range room.Prompts {
			if q.Player1ID == playerID && q.Player1Answer == "" {
				q.Player1Answer = skippedAnswer
			}
			if q.Player2ID == playerID && q.Player2Answer == "" {
				q.Player2Answer = skippedAnswer
			}
		}
		if g.allAnswersInLocked(room) {
			g.timers.cancel(room.Code)
			g.beginVotingLocked(room)
		}
	case stateLastLash:
		if room.LastLash.answerFor(playerID) == nil {
			room.LastLash.Answers = append(room.LastLash.Answers, &lastLashAnswer{
				PlayerID: playerID,
				Answer:   skippedAnswer,
			})
		}
		if len(room.LastLash.Answers) >= len(room.Players) {
			g.timers.cancel(room.Code)
			g.beginLastLashVotingLocked(room)
		}
	}
}

func (g *Game) kickPlayerLocked(room *Room, playerID string) {
	removed := g.rooms.removePlayerLocked(room, playerID)
	if removed == nil {
		return
	}

	log.Info().Str("room", room.Code).Str("player", playerID).Msg("player kicked")

	g.emit.toConn(removed.ConnID, evPlayerKicked, struct {
		PlayerID string `json:"playerId"`
	}{playerID})

	g.emit.toRoom(room.Code, evRoomUpdate, roomUpdate(room))
}

func (g *Game) pauseLocked(room *Room) {
	if room.Paused || room.State == stateLobby || room.State == stateGameOver {
		return
	}

	room.Paused = true
	room.PauseRemaining = secondsUntil(room.TimerEnd)
	room.PausedInState = room.State

	g.timers.cancel(room.Code)

	g.emit.toRoom(room.Code, evGamePaused, timerUpdatePayload{Remaining: room.PauseRemaining})
}

func (g *Game) resumeLocked(room *Room) {
	if !room.Paused {
		return
	}

	room.Paused = false
	remaining := room.PauseRemaining
	state := room.PausedInState
	room.PauseRemaining = 0
	room.PausedInState = ""

	g.emit.toRoom(room.Code, evGameResumed, timerUpdatePayload{Remaining: remaining})

	if remaining <= 0 {
		g.expiryLocked(room, state)
		return
	}

	g.timers.arm(room, time.Duration(remaining)*time.Second, g.callbackFor(room, state))
}

func (g *Game) extendTimeLocked(room *Room, extra time.Duration) {
	if room.Paused {
		room.PauseRemaining += int(extra.Seconds())
		return
	}

	if g.timers.extend(room, extra) {
		g.emit.toRoom(room.Code, evTimerUpdate, timerUpdatePayload{Remaining: secondsUntil(room.TimerEnd)})
	}
}

/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient is a hub client with no real websocket behind it; tests drain
// its send channel directly.
func testClient(h *Hub, id string) *Client {
	c := &Client{
		id:   id,
		send: make(chan outEvent, 64),
	}
	h.register(c)
	return c
}

func newTestHub() (*Hub, *RoomManager) {
	rooms := newRoomManager()
	hub := newHub(rooms)

	game := newGame(rooms, stubSource{}, hub)
	game.hold = holds{
		matchupIntro:  5 * time.Millisecond,
		matchupResult: 5 * time.Millisecond,
		roundScores:   5 * time.Millisecond,
		finaleResults: 5 * time.Millisecond,
	}
	hub.game = game

	return hub, rooms
}

func event(t *testing.T, name string, payload any) inEvent {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return inEvent{Event: name, Data: data}
}

// drain empties the client's send buffer and returns everything received.
func drain(c *Client) []outEvent {
	var out []outEvent
	for {
		select {
		case ev := <-c.send:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func findEvent(events []outEvent, name string) (outEvent, bool) {
	for _, ev := range events {
		if ev.Event == name {
			return ev, true
		}
	}
	return outEvent{}, false
}

func TestCreateRoomHandler(t *testing.T) {
	hub, rooms := newTestHub()
	host := testClient(hub, "host-conn")

	hub.dispatch(host, inEvent{Event: evCreateRoom})

	events := drain(host)

	created, ok := findEvent(events, evRoomCreated)
	require.True(t, ok)

	payload := created.Data.(roomCreatedPayload)
	assert.Regexp(t, `^[A-Z]{4}$`, payload.RoomCode)
	assert.NotEmpty(t, payload.HostID)

	room := rooms.getRoom(payload.RoomCode)
	require.NotNil(t, room)
	assert.Equal(t, "host-conn", room.HostConnID)

	_, ok = findEvent(events, evRoomUpdate)
	assert.True(t, ok)
}

func createTestRoom(t *testing.T, hub *Hub, host *Client) string {
	t.Helper()

	hub.dispatch(host, inEvent{Event: evCreateRoom})

	created, ok := findEvent(drain(host), evRoomCreated)
	require.True(t, ok)

	return created.Data.(roomCreatedPayload).RoomCode
}

func joinTestPlayer(t *testing.T, hub *Hub, code, name string) (*Client, string) {
	t.Helper()

	c := testClient(hub, "conn-"+name)
	hub.dispatch(c, event(t, evJoinRoom, joinRoomRequest{RoomCode: code, PlayerName: name}))

	joined, ok := findEvent(drain(c), evRoomJoined)
	require.True(t, ok, "player %s did not receive ROOM_JOINED", name)

	return c, joined.Data.(roomJoinedPayload).PlayerID
}

func TestJoinRoomHandler(t *testing.T) {
	hub, rooms := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	_, playerID := joinTestPlayer(t, hub, code, "Alice")
	assert.NotEmpty(t, playerID)

	room := rooms.getRoom(code)
	room.mu.Lock()
	require.Len(t, room.Players, 1)
	assert.Equal(t, "Alice", room.Players[0].Name)
	room.mu.Unlock()

	// The host sees the roster change.
	update, ok := findEvent(drain(host), evRoomUpdate)
	require.True(t, ok)
	assert.Len(t, update.Data.(roomUpdatePayload).Players, 1)
}

func TestJoinRoomCaseInsensitiveCode(t *testing.T) {
	hub, _ := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	c := testClient(hub, "conn-lower")
	hub.dispatch(c, event(t, evJoinRoom, joinRoomRequest{
		RoomCode:   strings.ToLower(code),
		PlayerName: "Lower",
	}))

	_, ok := findEvent(drain(c), evRoomJoined)
	assert.True(t, ok)
}

func TestJoinRoomErrors(t *testing.T) {
	hub, _ := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	c := testClient(hub, "conn-x")

	hub.dispatch(c, event(t, evJoinRoom, joinRoomRequest{RoomCode: "ZZZZ", PlayerName: "Alice"}))
	ev, ok := findEvent(drain(c), evError)
	require.True(t, ok)
	assert.Equal(t, "ROOM_NOT_FOUND", ev.Data.(errorPayload).Code)

	hub.dispatch(c, event(t, evJoinRoom, joinRoomRequest{RoomCode: code, PlayerName: ""}))
	ev, ok = findEvent(drain(c), evError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_NAME", ev.Data.(errorPayload).Code)

	hub.dispatch(c, event(t, evJoinRoom, joinRoomRequest{RoomCode: code, PlayerName: "Alice"}))
	drain(c)

	other := testClient(hub, "conn-y")
	hub.dispatch(other, event(t, evJoinRoom, joinRoomRequest{RoomCode: code, PlayerName: "alice"}))
	ev, ok = findEvent(drain(other), evError)
	require.True(t, ok)
	assert.Equal(t, "NAME_TAKEN", ev.Data.(errorPayload).Code)
}

func TestStartGameRequiresHost(t *testing.T) {
	hub, _ := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	player, _ := joinTestPlayer(t, hub, code, "Alice")

	hub.dispatch(player, event(t, evStartGame, startGameRequest{RoomCode: code}))
	ev, ok := findEvent(drain(player), evError)
	require.True(t, ok)
	assert.Equal(t, "NOT_HOST", ev.Data.(errorPayload).Code)
}

func TestStartGameNotEnoughPlayers(t *testing.T) {
	hub, _ := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	joinTestPlayer(t, hub, code, "Alice")

	hub.dispatch(host, event(t, evStartGame, startGameRequest{RoomCode: code}))
	ev, ok := findEvent(drain(host), evError)
	require.True(t, ok)
	assert.Equal(t, "NOT_ENOUGH_PLAYERS", ev.Data.(errorPayload).Code)
}

func TestStartGameFanOut(t *testing.T) {
	hub, rooms := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	players := make([]*Client, 0, 3)
	for i := 0; i < 3; i++ {
		c, _ := joinTestPlayer(t, hub, code, fmt.Sprintf("Player%d", i))
		players = append(players, c)
	}

	hub.dispatch(host, event(t, evStartGame, startGameRequest{RoomCode: code}))
	defer hub.game.timers.cancel(code)

	hostEvents := drain(host)

	_, ok := findEvent(hostEvents, evGameStarted)
	assert.True(t, ok)

	phase, ok := findEvent(hostEvents, evPromptPhase)
	require.True(t, ok)
	assert.Equal(t, 1, phase.Data.(promptPhasePayload).Round)

	for _, c := range players {
		got, ok := findEvent(drain(c), evReceivePrompts)
		require.True(t, ok)

		payload := got.Data.(receivePromptsPayload)
		assert.NotEmpty(t, payload.Prompts)
		assert.Equal(t, int(answerTime.Seconds()), payload.TimeLimit)
	}

	room := rooms.getRoom(code)
	room.mu.Lock()
	assert.Equal(t, statePrompt, room.State)
	room.mu.Unlock()
}

func TestSubmitAnswerOverWire(t *testing.T) {
	hub, rooms := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	type joined struct {
		client *Client
		id     string
	}
	var ps []joined
	for i := 0; i < 3; i++ {
		c, id := joinTestPlayer(t, hub, code, fmt.Sprintf("Player%d", i))
		ps = append(ps, joined{c, id})
	}

	hub.dispatch(host, event(t, evStartGame, startGameRequest{RoomCode: code}))
	defer hub.game.timers.cancel(code)

	room := rooms.getRoom(code)

	room.mu.Lock()
	player := room.player(ps[0].id)
	promptID := player.PromptsAssigned[0]
	room.mu.Unlock()

	hub.dispatch(ps[0].client, event(t, evSubmitAnswer, submitAnswerRequest{
		RoomCode: code,
		PromptID: promptID,
		Answer:   "a wire answer",
	}))

	// The host sees aggregate progress, not the answer itself.
	progress, ok := findEvent(drain(host), evPlayerSubmitted)
	require.True(t, ok)
	assert.Equal(t, ps[0].id, progress.Data.(playerProgressPayload).PlayerID)

	// Submission errors stay on the offending connection.
	hub.dispatch(ps[0].client, event(t, evSubmitAnswer, submitAnswerRequest{
		RoomCode: code,
		PromptID: promptID,
		Answer:   "again",
	}))
	ev, ok := findEvent(drain(ps[0].client), evError)
	require.True(t, ok)
	assert.Equal(t, "ALREADY_SUBMITTED", ev.Data.(errorPayload).Code)

	_, leaked := findEvent(drain(ps[1].client), evError)
	assert.False(t, leaked)
}

func TestRejoinHost(t *testing.T) {
	hub, rooms := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	room := rooms.getRoom(code)
	hostID := room.HostID

	wrong := testClient(hub, "imposter-conn")
	hub.dispatch(wrong, event(t, evRejoinHost, rejoinHostRequest{RoomCode: code, HostID: "bogus"}))
	ev, ok := findEvent(drain(wrong), evError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_HOST", ev.Data.(errorPayload).Code)

	fresh := testClient(hub, "fresh-host-conn")
	hub.dispatch(fresh, event(t, evRejoinHost, rejoinHostRequest{RoomCode: code, HostID: hostID}))

	success, ok := findEvent(drain(fresh), evRejoinHostSuccess)
	require.True(t, ok)
	assert.Equal(t, code, success.Data.(rejoinHostSuccessPayload).RoomCode)
	assert.Equal(t, "fresh-host-conn", room.HostConnID)
}

func TestRejoinPlayer(t *testing.T) {
	hub, rooms := newTestHub()
	host := testClient(hub, "host-conn")
	code := createTestRoom(t, hub, host)

	_, playerID := joinTestPlayer(t, hub, code, "Alice")

	room := rooms.getRoom(code)
	room.mu.Lock()
	room.player(playerID).Connected = false
	room.mu.Unlock()

	fresh := testClient(hub, "fresh-conn")
	hub.dispatch(fresh, event(t, evRejoin, rejoinRequest{RoomCode: strings.ToLower(code), PlayerID: playerID}))

	success, ok := findEvent(drain(fresh), evRejoinSuccess)
	require.True(t, ok)
	assert.Equal(t, playerID, success.Data.(rejoinSuccessPayload).PlayerID)

	room.mu.Lock()
	assert.True(t, room.player(playerID).Connected)
	assert.Equal(t, "fresh-conn", room.player(playerID).ConnID)
	room.mu.Unlock()
}

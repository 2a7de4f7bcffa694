/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomCodeFormat(t *testing.T) {
	rm := newRoomManager()
	pattern := regexp.MustCompile(`^[A-Z]{4}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room := rm.createRoom(fmt.Sprintf("conn-%d", i), fmt.Sprintf("host-%d", i))
		assert.Regexp(t, pattern, room.Code)
		assert.False(t, seen[room.Code], "duplicate code %s", room.Code)
		seen[room.Code] = true
		assert.Equal(t, stateLobby, room.State)
	}
}

func TestGetRoomCaseInsensitive(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("conn", "host")

	lower := ""
	for _, c := range room.Code {
		lower += string(c | 0x20)
	}

	assert.Same(t, room, rm.getRoom(lower))
	assert.Same(t, room, rm.getRoom(room.Code))
	assert.Nil(t, rm.getRoom("NOPE"))
}

func TestAddPlayer(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("host-conn", "host-id")

	got, player, err := rm.addPlayer(room.Code, "p1", "Alice", "conn-1")
	require.NoError(t, err)
	assert.Same(t, room, got)
	assert.True(t, player.Connected)
	assert.Zero(t, player.AnswersSubmitted)
	assert.Empty(t, player.PromptsAssigned)
	assert.Empty(t, player.HasVoted)
	assert.Equal(t, 0, room.Scores["p1"])
}

func TestAddPlayerErrors(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("host-conn", "host-id")

	_, _, err := rm.addPlayer("ZZZZ", "p1", "Alice", "c1")
	assert.ErrorIs(t, err, errRoomNotFound)

	_, _, err = rm.addPlayer(room.Code, "p1", "Alice", "c1")
	require.NoError(t, err)

	// Names collide case-insensitively.
	_, _, err = rm.addPlayer(room.Code, "p2", "ALICE", "c2")
	assert.ErrorIs(t, err, errNameTaken)

	for i := 0; i < maxPlayers-1; i++ {
		_, _, err = rm.addPlayer(room.Code, fmt.Sprintf("px%d", i), fmt.Sprintf("Name%d", i), fmt.Sprintf("cx%d", i))
		require.NoError(t, err)
	}

	_, _, err = rm.addPlayer(room.Code, "poverflow", "Overflow", "coverflow")
	assert.ErrorIs(t, err, errRoomFull)

	room.mu.Lock()
	room.State = statePrompt
	room.mu.Unlock()

	rm2 := newRoomManager()
	started := rm2.createRoom("hc", "hid")
	started.mu.Lock()
	started.State = statePrompt
	started.mu.Unlock()

	_, _, err = rm2.addPlayer(started.Code, "p1", "Late", "c9")
	assert.ErrorIs(t, err, errGameInProgress)
}

func TestJoinCaseInsensitiveRoomCode(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("host-conn", "host-id")

	lower := ""
	for _, c := range room.Code {
		lower += string(c | 0x20)
	}

	got, _, err := rm.addPlayer(lower, "p1", "Alice", "c1")
	require.NoError(t, err)
	assert.Same(t, room, got)
}

func TestFindByConnection(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("host-conn", "host-id")
	_, player, err := rm.addPlayer(room.Code, "p1", "Alice", "conn-1")
	require.NoError(t, err)

	got, role, found := rm.findByConnection("host-conn")
	assert.Same(t, room, got)
	assert.Equal(t, roleHost, role)
	assert.Nil(t, found)

	got, role, found = rm.findByConnection("conn-1")
	assert.Same(t, room, got)
	assert.Equal(t, rolePlayer, role)
	assert.Same(t, player, found)

	got, _, _ = rm.findByConnection("unknown")
	assert.Nil(t, got)
}

func TestUpdatePlayerConnection(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("host-conn", "host-id")
	_, player, err := rm.addPlayer(room.Code, "p1", "Alice", "conn-1")
	require.NoError(t, err)

	player.Connected = false

	_, got, err := rm.updatePlayerConnection(room.Code, "p1", "conn-2")
	require.NoError(t, err)
	assert.Same(t, player, got)
	assert.True(t, got.Connected)
	assert.Equal(t, "conn-2", got.ConnID)

	// The old binding is gone, the new one resolves.
	r, _, _ := rm.findByConnection("conn-1")
	assert.Nil(t, r)
	r, _, p := rm.findByConnection("conn-2")
	assert.Same(t, room, r)
	assert.Same(t, player, p)

	_, _, err = rm.updatePlayerConnection(room.Code, "ghost", "conn-3")
	assert.ErrorIs(t, err, errNotInRoom)
}

func TestUpdateHostConnection(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("host-conn", "host-id")

	_, err := rm.updateHostConnection(room.Code, "wrong-id", "new-conn")
	assert.ErrorIs(t, err, errInvalidHost)
	assert.Equal(t, "host-conn", room.HostConnID)

	got, err := rm.updateHostConnection(room.Code, "host-id", "new-conn")
	require.NoError(t, err)
	assert.Same(t, room, got)
	assert.Equal(t, "new-conn", room.HostConnID)
	assert.True(t, room.HostConnected)
}

func TestRemovePlayer(t *testing.T) {
	rm := newRoomManager()
	room := rm.createRoom("host-conn", "host-id")
	rm.addPlayer(room.Code, "p1", "Alice", "c1")
	rm.addPlayer(room.Code, "p2", "Bob", "c2")

	removed := rm.removePlayer(room.Code, "p1")
	require.NotNil(t, removed)
	assert.Equal(t, "p1", removed.ID)
	assert.Len(t, room.Players, 1)
	assert.NotContains(t, room.Scores, "p1")

	r, _, _ := rm.findByConnection("c1")
	assert.Nil(t, r)

	assert.Nil(t, rm.removePlayer(room.Code, "p1"))
}

func TestCleanupOlderThan(t *testing.T) {
	rm := newRoomManager()
	old := rm.createRoom("c1", "h1")
	fresh := rm.createRoom("c2", "h2")

	old.CreatedAt = time.Now().Add(-2 * time.Hour)

	reaped := rm.cleanupOlderThan(time.Hour)
	require.Len(t, reaped, 1)
	assert.Same(t, old, reaped[0])

	assert.Nil(t, rm.getRoom(old.Code))
	assert.Same(t, fresh, rm.getRoom(fresh.Code))

	// Connections of reaped rooms no longer resolve.
	r, _, _ := rm.findByConnection("c1")
	assert.Nil(t, r)
}

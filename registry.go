/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type connRole int

const (
	roleHost connRole = iota
	rolePlayer
)

type connRef struct {
	code     string
	role     connRole
	playerID string
}

// RoomManager names rooms, keeps codes unique, and maps transport connection
// ids back to the room and role they belong to. Readers dominate, so the map
// is guarded by a RWMutex; each Room serialises its own mutations.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	conns map[string]connRef
}

func newRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*Room),
		conns: make(map[string]connRef),
	}
}

// newRoomCode generates a crypto-random 4-letter uppercase code and ensures
// it doesn't collide with existing rooms. Callers must hold rm.mu.
func (rm *RoomManager) newRoomCodeLocked() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for {
		buf := make([]byte, roomCodeLength)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, roomCodeLength)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		code := string(out)

		if _, exists := rm.rooms[code]; !exists {
			return code
		}
	}
}

func (rm *RoomManager) createRoom(hostConnID, hostID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room := &Room{
		Code:            rm.newRoomCodeLocked(),
		HostConnID:      hostConnID,
		HostID:          hostID,
		HostConnected:   true,
		State:           stateLobby,
		Players:         make([]*Player, 0, maxPlayers),
		Scores:          make(map[string]int),
		UsedPromptTexts: make(map[string]bool),
		CreatedAt:       time.Now(),
	}

	rm.rooms[room.Code] = room
	rm.conns[hostConnID] = connRef{code: room.Code, role: roleHost}

	log.Info().Str("room", room.Code).Msg("room created")

	return room
}

func (rm *RoomManager) getRoom(code string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	return rm.rooms[strings.ToUpper(code)]
}

// addPlayer admits a player into a lobby. The returned player is initialised
// connected with zero progress and a seeded score.
func (rm *RoomManager) addPlayer(code, playerID, name, connID string) (*Room, *Player, error) {
	room := rm.getRoom(code)
	if room == nil {
		return nil, nil, errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	switch {
	case room.State != stateLobby:
		return nil, nil, errGameInProgress
	case len(room.Players) >= maxPlayers:
		return nil, nil, errRoomFull
	case room.playerByName(name) != nil:
		return nil, nil, errNameTaken
	}

	player := &Player{
		ID:        playerID,
		ConnID:    connID,
		Name:      name,
		Connected: true,
		HasVoted:  make(map[string]bool),
	}
	room.Players = append(room.Players, player)
	room.Scores[playerID] = 0

	rm.mu.Lock()
	rm.conns[connID] = connRef{code: room.Code, role: rolePlayer, playerID: playerID}
	rm.mu.Unlock()

	log.Info().Str("room", room.Code).Str("player", playerID).Str("name", name).Msg("player joined")

	return room, player, nil
}

func (rm *RoomManager) removePlayer(code, playerID string) *Player {
	room := rm.getRoom(code)
	if room == nil {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	return rm.removePlayerLocked(room, playerID)
}

// removePlayerLocked assumes room.mu is already held.
func (rm *RoomManager) removePlayerLocked(room *Room, playerID string) *Player {
	dst := room.Players[:0]
	var removed *Player

	for _, p := range room.Players {
		if p.ID == playerID {
			removed = p
			continue
		}
		dst = append(dst, p)
	}
	room.Players = dst

	if removed == nil {
		return nil
	}

	delete(room.Scores, playerID)

	rm.mu.Lock()
	delete(rm.conns, removed.ConnID)
	rm.mu.Unlock()

	return removed
}

// updatePlayerConnection rebinds a known player identity to a fresh
// connection and marks them connected again.
func (rm *RoomManager) updatePlayerConnection(code, playerID, connID string) (*Room, *Player, error) {
	room := rm.getRoom(code)
	if room == nil {
		return nil, nil, errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	player := room.player(playerID)
	if player == nil {
		return nil, nil, errNotInRoom
	}

	rm.mu.Lock()
	delete(rm.conns, player.ConnID)
	rm.conns[connID] = connRef{code: room.Code, role: rolePlayer, playerID: playerID}
	rm.mu.Unlock()

	player.ConnID = connID
	player.Connected = true

	return room, player, nil
}

// updateHostConnection rebinds the host, permitted only when the caller
// proves the stable host identity.
func (rm *RoomManager) updateHostConnection(code, hostID, connID string) (*Room, error) {
	room := rm.getRoom(code)
	if room == nil {
		return nil, errRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.HostID != hostID {
		return nil, errInvalidHost
	}

	rm.mu.Lock()
	delete(rm.conns, room.HostConnID)
	rm.conns[connID] = connRef{code: room.Code, role: roleHost}
	rm.mu.Unlock()

	room.HostConnID = connID
	room.HostConnected = true

	return room, nil
}

// findByConnection resolves a transport connection back to its room and
// role. The player pointer is set for player connections only.
func (rm *RoomManager) findByConnection(connID string) (*Room, connRole, *Player) {
	rm.mu.RLock()
	ref, ok := rm.conns[connID]
	rm.mu.RUnlock()

	if !ok {
		return nil, 0, nil
	}

	room := rm.getRoom(ref.code)
	if room == nil {
		return nil, 0, nil
	}

	if ref.role == rolePlayer {
		room.mu.Lock()
		player := room.player(ref.playerID)
		room.mu.Unlock()
		if player == nil {
			return nil, 0, nil
		}
		return room, rolePlayer, player
	}

	return room, roleHost, nil
}

func (rm *RoomManager) deleteRoom(code string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[strings.ToUpper(code)]
	if !ok {
		return nil
	}

	delete(rm.rooms, room.Code)
	for id, ref := range rm.conns {
		if ref.code == room.Code {
			delete(rm.conns, id)
		}
	}

	return room
}

// cleanupOlderThan deletes rooms older than maxAge and returns them so the
// caller can disconnect their clients.
func (rm *RoomManager) cleanupOlderThan(maxAge time.Duration) []*Room {
	cutoff := time.Now().Add(-maxAge)

	rm.mu.Lock()
	defer rm.mu.Unlock()

	var reaped []*Room
	for code, room := range rm.rooms {
		if room.CreatedAt.Before(cutoff) {
			delete(rm.rooms, code)
			reaped = append(reaped, room)
		}
	}

	for _, room := range reaped {
		for id, ref := range rm.conns {
			if ref.code == room.Code {
				delete(rm.conns, id)
			}
		}
		log.Info().Str("room", room.Code).Msg("room reaped")
	}

	return reaped
}

/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type joinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type rejoinRequest struct {
	PlayerID string `json:"playerId"`
	RoomCode string `json:"roomCode"`
}

type rejoinHostRequest struct {
	RoomCode string `json:"roomCode"`
	HostID   string `json:"hostId"`
}

type startGameRequest struct {
	RoomCode string `json:"roomCode"`
	Theme    string `json:"theme,omitempty"`
}

type submitAnswerRequest struct {
	RoomCode   string `json:"roomCode"`
	PromptID   string `json:"promptId,omitempty"`
	Answer     string `json:"answer"`
	IsLastLash bool   `json:"isLastLash,omitempty"`
}

type submitVoteRequest struct {
	RoomCode string `json:"roomCode"`
	PromptID string `json:"promptId"`
	Vote     int    `json:"vote"`
}

type lastLashVotesRequest struct {
	RoomCode string `json:"roomCode"`
	Votes    string `json:"votes"` // voted-for player id
}

type targetPlayerRequest struct {
	RoomCode string `json:"roomCode"`
	PlayerID string `json:"playerId"`
}

type extendTimeRequest struct {
	RoomCode string `json:"roomCode"`
	Seconds  int    `json:"seconds,omitempty"`
}

type roomRequest struct {
	RoomCode string `json:"roomCode"`
}

func (h *Hub) sendError(c *Client, err error) {
	var ge *gameError
	if errors.As(err, &ge) {
		h.toConn(c.id, evError, errorPayload{Message: ge.message, Code: ge.code})
		return
	}
	h.toConn(c.id, evError, errorPayload{Message: err.Error()})
}

// dispatch routes one inbound event. Validation failures are reported to the
// offending connection only; room state is untouched on failure.
func (h *Hub) dispatch(c *Client, ev inEvent) {
	decode := func(dst any) bool {
		if len(ev.Data) == 0 {
			return true
		}
		if err := json.Unmarshal(ev.Data, dst); err != nil {
			h.sendError(c, errBadPayload)
			return false
		}
		return true
	}

	switch ev.Event {
	case evCreateRoom:
		h.handleCreateRoom(c)

	case evJoinRoom:
		var req joinRoomRequest
		if decode(&req) {
			h.handleJoinRoom(c, req)
		}

	case evRejoin:
		var req rejoinRequest
		if decode(&req) {
			h.handleRejoin(c, req)
		}

	case evRejoinHost:
		var req rejoinHostRequest
		if decode(&req) {
			h.handleRejoinHost(c, req)
		}

	case evStartGame:
		var req startGameRequest
		if decode(&req) {
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				return h.game.startGameLocked(room, req.Theme)
			})
		}

	case evSubmitAnswer:
		var req submitAnswerRequest
		if decode(&req) {
			h.playerAction(c, req.RoomCode, func(room *Room, player *Player) error {
				if req.IsLastLash {
					return h.game.submitLastLashAnswerLocked(room, player.ID, req.Answer)
				}
				return h.game.submitAnswerLocked(room, player.ID, req.PromptID, req.Answer)
			})
		}

	case evSubmitVote:
		var req submitVoteRequest
		if decode(&req) {
			h.playerAction(c, req.RoomCode, func(room *Room, player *Player) error {
				return h.game.submitVoteLocked(room, player.ID, req.PromptID, req.Vote)
			})
		}

	case evSubmitLastLash:
		var req lastLashVotesRequest
		if decode(&req) {
			h.playerAction(c, req.RoomCode, func(room *Room, player *Player) error {
				return h.game.submitLastLashVoteLocked(room, player.ID, req.Votes)
			})
		}

	case evSkipPlayer:
		var req targetPlayerRequest
		if decode(&req) {
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				h.game.skipPlayerLocked(room, req.PlayerID)
				return nil
			})
		}

	case evKickPlayer:
		var req targetPlayerRequest
		if decode(&req) {
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				h.game.kickPlayerLocked(room, req.PlayerID)
				return nil
			})
		}

	case evPauseGame:
		var req roomRequest
		if decode(&req) {
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				h.game.pauseLocked(room)
				return nil
			})
		}

	case evResumeGame:
		var req roomRequest
		if decode(&req) {
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				h.game.resumeLocked(room)
				return nil
			})
		}

	case evExtendTime:
		var req extendTimeRequest
		if decode(&req) {
			if req.Seconds <= 0 {
				req.Seconds = 30
			}
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				h.game.extendTimeLocked(room, time.Duration(req.Seconds)*time.Second)
				return nil
			})
		}

	case evEndGame:
		var req roomRequest
		if decode(&req) {
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				h.game.endGameLocked(room)
				return nil
			})
		}

	case evContinueLastWit:
		var req roomRequest
		if decode(&req) {
			h.hostAction(c, req.RoomCode, func(room *Room) error {
				if room.State == stateLastLashVoting && room.LastLash != nil && room.LastLash.scored {
					h.game.gameOverLocked(room)
				}
				return nil
			})
		}

	default:
		log.Debug().Str("event", ev.Event).Msg("unknown inbound event")
	}
}

// hostAction locks the room and verifies the caller is its current host.
func (h *Hub) hostAction(c *Client, roomCode string, fn func(room *Room) error) {
	room := h.rooms.getRoom(roomCode)
	if room == nil {
		h.sendError(c, errRoomNotFound)
		return
	}

	room.mu.Lock()
	if room.HostConnID != c.id {
		room.mu.Unlock()
		h.sendError(c, errNotHost)
		return
	}

	err := fn(room)
	room.mu.Unlock()

	if err != nil {
		h.sendError(c, err)
	}
}

// playerAction resolves the caller's player identity from its connection.
func (h *Hub) playerAction(c *Client, roomCode string, fn func(room *Room, player *Player) error) {
	room, role, player := h.rooms.findByConnection(c.id)
	if room == nil || role != rolePlayer {
		h.sendError(c, errNotInRoom)
		return
	}
	if roomCode != "" && !strings.EqualFold(roomCode, room.Code) {
		h.sendError(c, errNotInRoom)
		return
	}

	room.mu.Lock()
	err := fn(room, player)
	room.mu.Unlock()

	if err != nil {
		h.sendError(c, err)
	}
}

func (h *Hub) handleCreateRoom(c *Client) {
	room := h.rooms.createRoom(c.id, uuid.NewString())
	h.joinRoom(c.id, room.Code)

	h.toConn(c.id, evRoomCreated, roomCreatedPayload{
		RoomCode: room.Code,
		HostID:   room.HostID,
	})

	room.mu.Lock()
	update := roomUpdate(room)
	room.mu.Unlock()

	h.toConn(c.id, evRoomUpdate, update)
}

func (h *Hub) handleJoinRoom(c *Client, req joinRoomRequest) {
	name := strings.TrimSpace(req.PlayerName)
	if name == "" || len(name) > maxNameLength {
		h.sendError(c, errInvalidName)
		return
	}

	room, player, err := h.rooms.addPlayer(req.RoomCode, uuid.NewString(), name, c.id)
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.joinRoom(c.id, room.Code)

	h.toConn(c.id, evRoomJoined, roomJoinedPayload{
		RoomCode:   room.Code,
		PlayerID:   player.ID,
		PlayerName: player.Name,
	})

	room.mu.Lock()
	update := roomUpdate(room)
	room.mu.Unlock()

	h.toRoom(room.Code, evRoomUpdate, update)
}

func (h *Hub) handleRejoin(c *Client, req rejoinRequest) {
	room, player, err := h.rooms.updatePlayerConnection(req.RoomCode, req.PlayerID, c.id)
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.joinRoom(c.id, room.Code)

	room.mu.Lock()
	payload := rejoinSuccessPayload{
		RoomCode:   room.Code,
		PlayerID:   player.ID,
		State:      room.State,
		Room:       roomUpdate(room),
		Scoreboard: room.scoreboard(),
	}
	if room.State == statePrompt {
		for _, id := range player.PromptsAssigned {
			if q := room.prompt(id); q != nil {
				payload.Prompts = append(payload.Prompts, assignedPrompt{ID: q.ID, Text: q.Text})
			}
		}
	}
	update := roomUpdate(room)
	room.mu.Unlock()

	h.toConn(c.id, evRejoinSuccess, payload)
	h.toRoom(room.Code, evRoomUpdate, update)

	log.Info().Str("room", room.Code).Str("player", player.ID).Msg("player rejoined")
}

func (h *Hub) handleRejoinHost(c *Client, req rejoinHostRequest) {
	room, err := h.rooms.updateHostConnection(req.RoomCode, req.HostID, c.id)
	if err != nil {
		h.sendError(c, err)
		return
	}

	h.joinRoom(c.id, room.Code)

	room.mu.Lock()
	payload := rejoinHostSuccessPayload{
		RoomCode:   room.Code,
		HostID:     room.HostID,
		State:      room.State,
		Room:       roomUpdate(room),
		Scoreboard: room.scoreboard(),
	}
	update := roomUpdate(room)
	room.mu.Unlock()

	h.toConn(c.id, evRejoinHostSuccess, payload)
	h.toRoom(room.Code, evRoomUpdate, update)

	log.Info().Str("room", room.Code).Msg("host rejoined")
}

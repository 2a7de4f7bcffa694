/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "time"

const (
	minPlayers       = 3
	maxPlayers       = 8
	roundsPerGame    = 2
	promptsPerPlayer = 2

	maxAnswerLength = 100
	maxNameLength   = 15
	maxThemeLength  = 120
	roomCodeLength  = 4

	pointsPerVote = 100
	quipwitBonus  = 100
	lastLashFirst = 300

	answerTime         = 90 * time.Second
	voteTime           = 30 * time.Second
	lastLashAnswerTime = 90 * time.Second
	lastLashVoteTime   = 45 * time.Second

	// Sentinels stored in place of a missing answer. Answers equal to either
	// are exempt from the Jinx rule and never earn the QuipWit bonus.
	noAnswer      = "[No answer]"
	skippedAnswer = "[Skipped]"
)

// holds are the presentation pauses between phase transitions. Tests shrink
// these to keep the FSM walkable in real time.
type holds struct {
	matchupIntro  time.Duration
	matchupResult time.Duration
	roundScores   time.Duration
	finaleResults time.Duration
}

func defaultHolds() holds {
	return holds{
		matchupIntro:  1500 * time.Millisecond,
		matchupResult: 4 * time.Second,
		roundScores:   5 * time.Second,
		finaleResults: 8 * time.Second,
	}
}

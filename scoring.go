/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"sort"
	"strings"
)

type matchupScore struct {
	Player1Points int
	Player2Points int
	IsJinx        bool
	Quipwit       int // 0 none, 1 or 2 for the unanimous side
}

func canonicalAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func isSentinel(canonical string) bool {
	return canonical == strings.ToLower(noAnswer) || canonical == strings.ToLower(skippedAnswer)
}

// scoreMatchup is a pure function of the two answers and their vote
// counters. Matching answers are a Jinx and score nothing, unless both
// sides simply failed to answer. A unanimous vote is a QuipWit and earns
// the winning author a bonus, provided they actually wrote something.
func scoreMatchup(answer1, answer2 string, votes1, votes2 int) matchupScore {
	c1 := canonicalAnswer(answer1)
	c2 := canonicalAnswer(answer2)

	if c1 == c2 && !isSentinel(c1) {
		return matchupScore{IsJinx: true}
	}

	score := matchupScore{
		Player1Points: votes1 * pointsPerVote,
		Player2Points: votes2 * pointsPerVote,
	}

	total := votes1 + votes2
	switch {
	case total > 0 && votes2 == 0 && !isSentinel(c1):
		score.Player1Points += quipwitBonus
		score.Quipwit = 1
	case total > 0 && votes1 == 0 && !isSentinel(c2):
		score.Player2Points += quipwitBonus
		score.Quipwit = 2
	}

	return score
}

// applyMatchupScore records the outcome on the prompt and folds the points
// into the room's cumulative totals.
func applyMatchupScore(room *Room, prompt *Prompt) matchupScore {
	score := scoreMatchup(prompt.Player1Answer, prompt.Player2Answer, prompt.Player1Votes, prompt.Player2Votes)

	prompt.IsJinx = score.IsJinx
	prompt.Quipwit = score.Quipwit
	prompt.scored = true

	room.Scores[prompt.Player1ID] += score.Player1Points
	room.Scores[prompt.Player2ID] += score.Player2Points

	return score
}

// scoreLastLash counts the single-vote finale: every author earns their
// votes at the usual rate, and everyone tied at the (non-zero) maximum also
// earns the winner bonus.
func scoreLastLash(ll *lastLash) {
	counts := make(map[string]int, len(ll.Answers))
	for _, target := range ll.Votes {
		counts[target]++
	}

	maxVotes := 0
	for _, a := range ll.Answers {
		a.Votes = counts[a.PlayerID]
		if a.Votes > maxVotes {
			maxVotes = a.Votes
		}
	}

	for _, a := range ll.Answers {
		a.Points = a.Votes * pointsPerVote
		if maxVotes > 0 && a.Votes == maxVotes {
			a.Points += lastLashFirst
			a.IsWinner = true
		}
	}
}

// applyLastLashScores folds finale earnings into the room totals and
// returns the answers sorted by points descending.
func applyLastLashScores(room *Room) []*lastLashAnswer {
	scoreLastLash(room.LastLash)

	for _, a := range room.LastLash.Answers {
		if _, ok := room.Scores[a.PlayerID]; ok {
			room.Scores[a.PlayerID] += a.Points
		}
	}

	sorted := make([]*lastLashAnswer, len(room.LastLash.Answers))
	copy(sorted, room.LastLash.Answers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Points > sorted[j].Points
	})

	return sorted
}

// validateFinaleAnswer applies the soft per-mode checks. A mismatch attaches
// a warning to the stored answer; it never rejects.
func validateFinaleAnswer(ll *lastLash, answer string) string {
	if len(ll.Letters) == 0 {
		return ""
	}

	words := strings.Fields(answer)

	if ll.Mode == modeAcroLash && len(words) != len(ll.Letters) {
		return "Answer should have exactly one word per letter."
	}
	if len(words) < len(ll.Letters) {
		return "Answer has fewer words than letters."
	}

	for i, letter := range ll.Letters {
		if !strings.EqualFold(words[i][:1], letter) {
			return "Words should start with the given letters, in order."
		}
	}

	return ""
}

// sanitizeAnswer trims and truncates a submitted answer, substituting the
// no-answer sentinel for blank input.
func sanitizeAnswer(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return noAnswer
	}
	if len(trimmed) > maxAnswerLength {
		trimmed = trimmed[:maxAnswerLength]
	}
	return trimmed
}

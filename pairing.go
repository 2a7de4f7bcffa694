/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
)

// pairPrompts assigns each prompt text two distinct authors so that every
// player ends up with promptsPerPlayer assignments; when the product of
// players and assignments is odd, exactly one player absorbs a bonus prompt.
//
// Greedy by remaining need: each slot takes two players from the highest
// remaining-need tiers, shuffling within a tier so repeated games don't
// produce the same matchups.
func pairPrompts(players []*Player, texts []string, round int) []*Prompt {
	need := make(map[string]int, len(players))
	for _, p := range players {
		need[p.ID] = promptsPerPlayer
	}

	byID := make(map[string]*Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
		p.PromptsAssigned = p.PromptsAssigned[:0]
	}

	prompts := make([]*Prompt, 0, len(texts))

	for i, text := range texts {
		ordered := orderByNeed(players, need)
		if len(ordered) < 2 {
			break
		}

		p1, p2 := ordered[0], ordered[1]

		prompt := &Prompt{
			ID:        fmt.Sprintf("r%d_p%d", round, i),
			Text:      text,
			Player1ID: p1,
			Player2ID: p2,
		}
		prompts = append(prompts, prompt)

		need[p1]--
		need[p2]--

		byID[p1].PromptsAssigned = append(byID[p1].PromptsAssigned, prompt.ID)
		byID[p2].PromptsAssigned = append(byID[p2].PromptsAssigned, prompt.ID)
	}

	for id, n := range need {
		if n > 0 {
			log.Warn().Str("player", id).Int("unfilled", n).Msg("pairing left unassigned prompts")
		}
	}

	return prompts
}

// orderByNeed returns player ids sorted by descending remaining need, with
// ties shuffled. Players whose need is exhausted still appear at the tail,
// so a final odd slot can hand someone a bonus assignment.
func orderByNeed(players []*Player, need map[string]int) []string {
	tiers := make(map[int][]string)
	maxNeed := 0
	for _, p := range players {
		n := need[p.ID]
		tiers[n] = append(tiers[n], p.ID)
		if n > maxNeed {
			maxNeed = n
		}
	}

	out := make([]string, 0, len(players))
	for n := maxNeed; n >= 0; n-- {
		tier := tiers[n]
		rand.Shuffle(len(tier), func(i, j int) {
			tier[i], tier[j] = tier[j], tier[i]
		})
		out = append(out, tier...)
	}

	return out
}

// promptCount is the number of matchups needed for a roster: ceil(P*K/2).
func promptCount(playerCount int) int {
	return (playerCount*promptsPerPlayer + 1) / 2
}

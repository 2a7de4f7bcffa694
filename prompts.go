/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"
)

type lastLashPrompt struct {
	Prompt       string
	Mode         lastLashMode
	Letters      []string
	Instructions string
}

// PromptSource produces distinct prompt strings for regular rounds and a
// single finale descriptor. Implementations must be safe for concurrent use
// from multiple rooms and must record returned strings in seen.
type PromptSource interface {
	GeneratePrompts(ctx context.Context, count int, seen map[string]bool, theme string) ([]string, error)
	GenerateLastLash(ctx context.Context, seen map[string]bool, theme string) (lastLashPrompt, error)
}

// templateSource is the built-in template-and-fillword generator. It never
// fails and backs the remote generator as its fallback.
type templateSource struct{}

var promptTemplates = []string{
	"The worst thing to say during %s",
	"A terrible name for a %s",
	"The real reason %s was cancelled",
	"Something you should never bring to %s",
	"The most disappointing prize at %s",
	"A rejected slogan for %s",
	"What %s smells like",
	"The secret ingredient in %s",
	"An unusual use for %s",
	"The first rule of %s club",
	"What your %s is really thinking",
	"A surprising fact about %s",
	"The best excuse for missing %s",
	"Something you'd hate to find inside %s",
	"A bad time to start talking about %s",
}

var promptFillers = []string{
	"a job interview", "grandma's house", "the moon landing", "a pirate ship",
	"karaoke night", "the dentist", "a wedding", "gym class", "the zoo",
	"a magic show", "tax season", "a haunted house", "the office party",
	"a cooking show", "jury duty", "summer camp", "the talent show",
	"a road trip", "the school reunion", "a yard sale",
}

var flashbackSetups = []string{
	"It was the last day of school, and nobody expected what the principal did next...",
	"The band had one song left to play when the lights went out...",
	"Deep in the jungle, the expedition found something no map had warned them about...",
	"The bakery had been closed for years, but that morning the ovens were warm...",
	"Halfway through the wedding toast, the best man's phone started ringing...",
	"The spaceship's coffee machine made a noise nobody had heard before...",
}

var modeInstructions = map[lastLashMode]string{
	modeFlashback: "Finish the story any way you like.",
	modeWordLash:  "Write a phrase whose words start with these letters, in order.",
	modeAcroLash:  "What does this acronym stand for? One word per letter.",
}

func (templateSource) GeneratePrompts(_ context.Context, count int, seen map[string]bool, theme string) ([]string, error) {
	out := make([]string, 0, count)

	for attempts := 0; len(out) < count && attempts < count*50; attempts++ {
		template := promptTemplates[rand.Intn(len(promptTemplates))]
		filler := promptFillers[rand.Intn(len(promptFillers))]
		text := fmt.Sprintf(template, filler)
		if theme != "" {
			text = fmt.Sprintf("(%s) %s", theme, text)
		}

		if seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}

	// Template space exhausted; number the tail so the batch is never short.
	for i := 0; len(out) < count; i++ {
		text := fmt.Sprintf("Prompt #%d: the strangest thing about %s", i+1, promptFillers[i%len(promptFillers)])
		if seen[text] {
			continue
		}
		seen[text] = true
		out = append(out, text)
	}

	return out, nil
}

func (templateSource) GenerateLastLash(_ context.Context, seen map[string]bool, theme string) (lastLashPrompt, error) {
	mode := []lastLashMode{modeFlashback, modeWordLash, modeAcroLash}[rand.Intn(3)]

	ll := lastLashPrompt{
		Mode:         mode,
		Instructions: modeInstructions[mode],
	}

	switch mode {
	case modeFlashback:
		for attempts := 0; ; attempts++ {
			ll.Prompt = flashbackSetups[rand.Intn(len(flashbackSetups))]
			if !seen[ll.Prompt] || attempts >= len(flashbackSetups)*10 {
				break
			}
		}
		seen[ll.Prompt] = true
	case modeWordLash:
		ll.Letters = pickLetters(3)
		ll.Prompt = "Write a phrase using the letters " + strings.Join(ll.Letters, ".") + "."
	case modeAcroLash:
		ll.Letters = pickLetters(3 + rand.Intn(3))
		ll.Prompt = "What does " + strings.Join(ll.Letters, "") + " stand for?"
	}

	return ll, nil
}

// pickLetters draws n uppercase letters with no two consecutive repeats.
func pickLetters(n int) []string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	out := make([]string, n)
	prev := byte(0)
	for i := range out {
		for {
			c := alphabet[rand.Intn(len(alphabet))]
			if c != prev {
				out[i] = string(c)
				prev = c
				break
			}
		}
	}
	return out
}

// fallbackSource wraps a primary source and tops up any shortfall from the
// local generator, so callers never see an error or a short batch.
type fallbackSource struct {
	primary PromptSource
	local   templateSource
}

func newFallbackSource(primary PromptSource) *fallbackSource {
	return &fallbackSource{primary: primary}
}

func (s *fallbackSource) GeneratePrompts(ctx context.Context, count int, seen map[string]bool, theme string) ([]string, error) {
	var out []string

	if s.primary != nil {
		got, err := s.primary.GeneratePrompts(ctx, count, seen, theme)
		if err != nil {
			log.Warn().Err(err).Msg("remote prompt generation failed, falling back")
		} else {
			out = got
		}
	}

	if len(out) < count {
		extra, _ := s.local.GeneratePrompts(ctx, count-len(out), seen, theme)
		out = append(out, extra...)
	}

	return out, nil
}

func (s *fallbackSource) GenerateLastLash(ctx context.Context, seen map[string]bool, theme string) (lastLashPrompt, error) {
	if s.primary != nil {
		ll, err := s.primary.GenerateLastLash(ctx, seen, theme)
		if err == nil && ll.Prompt != "" {
			return ll, nil
		}
		if err != nil {
			log.Warn().Err(err).Msg("remote finale generation failed, falling back")
		}
	}

	return s.local.GenerateLastLash(ctx, seen, theme)
}

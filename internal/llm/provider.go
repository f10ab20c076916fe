// Package llm provides completion providers with ordered fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var (
	// ErrNoProviders is returned when a chain has no configured providers.
	ErrNoProviders = errors.New("no completion providers configured")
	// ErrEmptyPrompt is returned when the prompt is empty.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// Provider generates a completion for a prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Chain tries providers in order and returns the first successful
// completion. A provider error moves on to the next provider; only
// when every provider fails does the chain return an error.
type Chain struct {
	providers []Provider
}

// NewChain builds a chain from the given providers, in priority order.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Name identifies the chain by its member providers.
func (c *Chain) Name() string {
	if len(c.providers) == 0 {
		return "chain(empty)"
	}
	name := "chain("
	for i, p := range c.providers {
		if i > 0 {
			name += ","
		}
		name += p.Name()
	}
	return name + ")"
}

// Complete runs the prompt through each provider until one succeeds.
func (c *Chain) Complete(ctx context.Context, prompt string) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoProviders
	}
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	var lastErr error
	for _, p := range c.providers {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		result, err := p.Complete(ctx, prompt)
		if err == nil {
			return result, nil
		}

		log.Printf("llm: provider %s failed, trying next: %v", p.Name(), err)
		lastErr = err
	}

	return "", fmt.Errorf("all completion providers failed: %w", lastErr)
}

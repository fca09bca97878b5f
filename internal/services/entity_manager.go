// Package services implements the domain logic layer of the backend. Services
// sit between the HTTP handlers and the repositories: they validate input,
// enforce entity invariants, stamp actor attribution, and translate repository
// results into the shared error taxonomy. Handlers never touch repositories
// directly.
//
// entity_manager.go holds the shared mutation plumbing for the three
// history-tracked entities (Policy, Alert, Incident). Every successful mutation
// appends exactly one history entry, stamped with the acting user and the
// persistence timestamp, and the entry lands in the same UPDATE as the mutated
// fields.
package services

import (
	"context"
	"time"

	"github.com/sentinel-dlp/sentinel-dlp/internal/auth"
	"github.com/sentinel-dlp/sentinel-dlp/internal/db/models"
)

// historyTracked is satisfied by every entity carrying an append-only history.
type historyTracked interface {
	HistoryRef() *models.HistoryList
}

// mutation describes one load-apply-store cycle over a history-tracked entity.
// The load closure must translate an absent entity into apperr.ErrNotFound.
// The apply closure mutates the loaded entity in place and returns the single
// history entry describing the change; actor and timestamp are stamped here.
type mutation[E historyTracked] struct {
	load  func(ctx context.Context) (E, error)
	store func(ctx context.Context, entity E) error
	apply func(entity E) (models.HistoryEntry, error)
}

// applyMutation runs one mutation cycle and returns the stored entity. Apply
// errors abort before any write, so a rejected mutation leaves both the entity
// and its history untouched.
func applyMutation[E historyTracked](ctx context.Context, actor *auth.Identity, m mutation[E]) (E, error) {
	var zero E

	entity, err := m.load(ctx)
	if err != nil {
		return zero, err
	}

	entry, err := m.apply(entity)
	if err != nil {
		return zero, err
	}

	entry.Timestamp = time.Now()
	if actor != nil {
		entry.ActorID = actor.ID
		entry.Actor = actor.Username
	}

	history := entity.HistoryRef()
	*history = append(*history, entry)

	if err := m.store(ctx, entity); err != nil {
		return zero, err
	}

	return entity, nil
}

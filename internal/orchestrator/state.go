package orchestrator

import (
	"context"
	"log/slog"

	"github.com/easeaico/companion-engine/internal/emotion"
	"github.com/easeaico/companion-engine/internal/intimacy"
	"github.com/easeaico/companion-engine/internal/personality"
)

// state_kv keys, one snapshot per engine.
const (
	stateKeyEmotion     = "emotion_state"
	stateKeyIntimacy    = "intimacy_state"
	stateKeyPersonality = "personality_traits"
)

// RestoreState loads persisted engine snapshots. Missing keys leave the
// fresh defaults in place; a read failure is logged and skipped, the session
// just starts from defaults.
func (o *Orchestrator) RestoreState(ctx context.Context) {
	if o.states == nil {
		return
	}

	var emoState emotion.State
	if ok, err := o.states.Load(ctx, stateKeyEmotion, &emoState); err != nil {
		slog.Warn("failed to load emotion state", "error", err)
	} else if ok {
		o.emotions.Restore(emoState)
	}

	var bondState intimacy.State
	if ok, err := o.states.Load(ctx, stateKeyIntimacy, &bondState); err != nil {
		slog.Warn("failed to load intimacy state", "error", err)
	} else if ok {
		o.bond.Restore(bondState)
	}

	var traits personality.Traits
	if ok, err := o.states.Load(ctx, stateKeyPersonality, &traits); err != nil {
		slog.Warn("failed to load personality traits", "error", err)
	} else if ok {
		o.character.Restore(traits)
	}
}

// persistState writes the current snapshots. Fire-and-forget: failures keep
// the in-memory state authoritative for the session.
func (o *Orchestrator) persistState(ctx context.Context) {
	if o.states == nil {
		return
	}
	if err := o.states.Save(ctx, stateKeyEmotion, o.emotions.Snapshot()); err != nil {
		slog.Warn("failed to persist emotion state", "error", err)
	}
	if err := o.states.Save(ctx, stateKeyIntimacy, o.bond.Snapshot()); err != nil {
		slog.Warn("failed to persist intimacy state", "error", err)
	}
	if err := o.states.Save(ctx, stateKeyPersonality, o.character.Snapshot()); err != nil {
		slog.Warn("failed to persist personality traits", "error", err)
	}
}

func (o *Orchestrator) notifyObserver() {
	if o.observer == nil {
		return
	}
	o.observer(StateSnapshot{
		Emotion:  o.emotions.Snapshot(),
		Intimacy: o.bond.Snapshot(),
		Traits:   o.character.Snapshot(),
	})
}

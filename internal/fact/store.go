// Package fact 维护关于用户的长期档案事实。
package fact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/types"
)

// Repo is the persistence the store needs; implemented by
// repository.FactRepo.
type Repo interface {
	Get(ctx context.Context, key string) (*types.FactEntry, error)
	Upsert(ctx context.Context, entry types.FactEntry) error
	ListActive(ctx context.Context) ([]types.FactEntry, error)
}

// Store holds canonical user facts and arbitrates conflicting updates.
// Facts are durable: unlike conversational memory they are consulted on
// every turn and never pruned.
type Store struct {
	mu     sync.Mutex
	repo   Repo
	gen    genservice.Client // optional disambiguation pass
	tuning config.FactTuning
}

// NewStore returns a fact store. gen may be nil; extraction then runs on
// regex patterns alone at reduced confidence.
func NewStore(repo Repo, gen genservice.Client, tuning config.FactTuning) *Store {
	return &Store{repo: repo, gen: gen, tuning: tuning}
}

// Set writes a fact, subject to conflict resolution:
//   - verified entries never change, for any input;
//   - rejected entries are freely overwritten;
//   - active entries yield only when the incoming confidence beats the
//     existing confidence after age-based decay.
func (s *Store) Set(ctx context.Context, entry types.FactEntry, now time.Time) (bool, error) {
	if entry.Key == "" || strings.TrimSpace(entry.Value) == "" {
		return false, fmt.Errorf("fact key and value are required")
	}
	if entry.Status == "" {
		entry.Status = types.FactStatusActive
	}
	entry.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.Get(ctx, entry.Key)
	if err != nil {
		return false, fmt.Errorf("failed to read fact %q: %w", entry.Key, err)
	}
	if existing != nil {
		switch existing.Status {
		case types.FactStatusVerified:
			return false, nil
		case types.FactStatusActive:
			if entry.Confidence <= s.decayedConfidence(*existing, now) {
				return false, nil
			}
		}
	}

	if err := s.repo.Upsert(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to write fact %q: %w", entry.Key, err)
	}
	return true, nil
}

// Verify promotes an existing fact to verified, freezing its value.
func (s *Store) Verify(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read fact %q: %w", key, err)
	}
	if existing == nil {
		return fmt.Errorf("fact %q not found", key)
	}
	existing.Status = types.FactStatusVerified
	existing.Source = types.FactSourceConfirmed
	if err := s.repo.Upsert(ctx, *existing); err != nil {
		return fmt.Errorf("failed to verify fact %q: %w", key, err)
	}
	return nil
}

// Get returns one fact, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) (*types.FactEntry, error) {
	return s.repo.Get(ctx, key)
}

// ListActive returns every non-rejected fact.
func (s *Store) ListActive(ctx context.Context) ([]types.FactEntry, error) {
	return s.repo.ListActive(ctx)
}

// IngestMessage extracts facts from one user utterance and stores the ones
// that win conflict resolution. Returns the number of facts written.
func (s *Store) IngestMessage(ctx context.Context, text string, now time.Time) int {
	candidates := Extract(text)
	if len(candidates) == 0 {
		return 0
	}

	written := 0
	for _, candidate := range candidates {
		confidence := regexConfidence
		if s.gen != nil {
			verdict, err := s.disambiguate(ctx, text, candidate)
			if err != nil {
				slog.Warn("fact disambiguation unavailable, keeping regex confidence",
					"key", candidate.Key, "error", err)
			} else if !verdict {
				continue
			} else {
				confidence = disambiguatedConfidence
			}
		}

		entry := types.FactEntry{
			Key:        candidate.Key,
			Value:      candidate.Value,
			Source:     types.FactSourceInferred,
			Confidence: confidence,
			Status:     types.FactStatusActive,
		}
		ok, err := s.Set(ctx, entry, now)
		if err != nil {
			slog.Warn("failed to store extracted fact", "key", candidate.Key, "error", err)
			continue
		}
		if ok {
			written++
		}
	}
	return written
}

const disambiguationPrompt = `判断下面这句话中的陈述是否是用户在描述 TA 自己（而不是在转述别人、谈论 AI 伙伴或假设）。
原句：%s
提取到的信息：%s = %s
只回答 "是" 或 "否"。`

// disambiguate asks the backend whether the extracted statement really
// describes the user. Any failure is reported so the caller can degrade to
// regex-only confidence.
func (s *Store) disambiguate(ctx context.Context, text string, candidate Candidate) (bool, error) {
	resp, err := s.gen.Generate(ctx, &genservice.Request{
		Messages: []genservice.Message{
			{Role: "user", Content: fmt.Sprintf(disambiguationPrompt, text, candidate.Key, candidate.Value)},
		},
		Params: types.SamplingParams{Temperature: 0.1, MaxTokens: 8},
	})
	if err != nil {
		return false, err
	}
	if resp == nil || !resp.Success {
		return false, fmt.Errorf("disambiguation call did not succeed")
	}
	answer := strings.TrimSpace(resp.Content)
	return strings.Contains(answer, "是") || strings.Contains(strings.ToLower(answer), "yes"), nil
}

// decayedConfidence discounts stored confidence by age: stale facts lose
// authority and become easier to replace.
func (s *Store) decayedConfidence(entry types.FactEntry, now time.Time) float64 {
	if s.tuning.ExpiryWindowDays <= 0 {
		return entry.Confidence
	}
	ageDays := now.Sub(entry.UpdatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	discount := s.tuning.ConfidenceDecayRate * ageDays / s.tuning.ExpiryWindowDays
	if discount > 1 {
		discount = 1
	}
	return entry.Confidence * (1 - discount)
}

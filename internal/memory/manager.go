// Package memory 管理对话记忆的保留与检索。
package memory

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/types"
)

// Repo is the persistence the manager needs; implemented by
// repository.MemoryRepo.
type Repo interface {
	Add(ctx context.Context, entry types.MemoryEntry, embedding []float32) error
	Recent(ctx context.Context, limit int) ([]types.MemoryEntry, error)
	Count(ctx context.Context) (int, error)
	DeleteOldest(ctx context.Context, n int) error
	ExistsContent(ctx context.Context, content string) (bool, error)
	SearchSimilar(ctx context.Context, embedding []float32, topK int, threshold float64) ([]types.MemoryEntry, error)
}

// Manager keeps a bounded in-memory working set over the unbounded
// persistent store. Persistence failures are logged and the working set
// keeps serving the session (no retry queue).
type Manager struct {
	mu         sync.Mutex
	working    []types.MemoryEntry // oldest first, bounded
	repo       Repo
	embedder   Embedder // optional
	tuning     config.MemoryTuning
	workingCap int
	storeCap   int
}

// NewManager builds a manager and warms the working set from the store.
func NewManager(ctx context.Context, repo Repo, embedder Embedder, tuning config.MemoryTuning, workingCap, storeCap int) *Manager {
	if workingCap <= 0 {
		workingCap = 50
	}
	if storeCap <= 0 {
		storeCap = 200
	}
	m := &Manager{
		repo:       repo,
		embedder:   embedder,
		tuning:     tuning,
		workingCap: workingCap,
		storeCap:   storeCap,
	}
	if repo != nil {
		if recent, err := repo.Recent(ctx, workingCap); err != nil {
			slog.Warn("failed to warm memory working set", "error", err)
		} else {
			m.working = recent
		}
	}
	return m
}

// Add stores one memory. Entries below the importance threshold are
// rejected, and content already present (exact match) is never stored twice.
// At store capacity the oldest entries are pruned first.
func (m *Manager) Add(ctx context.Context, content string, importance float64, now time.Time) bool {
	content = strings.TrimSpace(content)
	if content == "" || importance < m.tuning.ImportanceThreshold {
		return false
	}

	m.mu.Lock()
	for _, entry := range m.working {
		if entry.Content == content {
			m.mu.Unlock()
			return false
		}
	}
	m.mu.Unlock()

	if m.repo != nil {
		exists, err := m.repo.ExistsContent(ctx, content)
		if err != nil {
			slog.Warn("memory dedup check failed", "error", err)
		} else if exists {
			return false
		}
	}

	entry := types.MemoryEntry{Content: content, Timestamp: now, Importance: importance}

	var embedding []float32
	if m.embedder != nil {
		vec, err := m.embedder.EmbedDocument(ctx, content)
		if err != nil {
			slog.Warn("memory embedding failed, storing without vector", "error", err)
		} else {
			embedding = vec
		}
	}

	if m.repo != nil {
		if count, err := m.repo.Count(ctx); err == nil && count >= m.storeCap {
			if err := m.repo.DeleteOldest(ctx, count-m.storeCap+1); err != nil {
				slog.Warn("memory pruning failed", "error", err)
			}
		}
		if err := m.repo.Add(ctx, entry, embedding); err != nil {
			slog.Warn("memory persistence failed, keeping in working set", "error", err)
		}
	}

	m.mu.Lock()
	m.working = append(m.working, entry)
	if len(m.working) > m.workingCap {
		m.working = m.working[len(m.working)-m.workingCap:]
	}
	m.mu.Unlock()
	return true
}

// Recent returns the k most recent entries, oldest first.
func (m *Manager) Recent(k int) []types.MemoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k <= 0 || len(m.working) == 0 {
		return nil
	}
	if k > len(m.working) {
		k = len(m.working)
	}
	out := make([]types.MemoryEntry, k)
	copy(out, m.working[len(m.working)-k:])
	return out
}

// RecentForIntimacy scales the recall window with closeness: a distant
// companion remembers 3 items, a bonded one up to 10.
func (m *Manager) RecentForIntimacy(intimacy float64) []types.MemoryEntry {
	k := 3 + int(math.Round(intimacy*7))
	return m.Recent(k)
}

// RetrieveWeighted returns the top n entries scored by keyword match,
// recency and importance.
func (m *Manager) RetrieveWeighted(query string, n int, now time.Time) []types.MemoryEntry {
	m.mu.Lock()
	entries := make([]types.MemoryEntry, len(m.working))
	copy(entries, m.working)
	m.mu.Unlock()

	if n <= 0 || len(entries) == 0 {
		return nil
	}

	keywords := strings.Fields(strings.ToLower(query))
	type scored struct {
		entry types.MemoryEntry
		score float64
	}
	ranked := make([]scored, 0, len(entries))
	for _, entry := range entries {
		score := m.tuning.KeywordWeight*keywordScore(entry.Content, keywords) +
			m.tuning.RecencyWeight*recencyScore(entry.Timestamp, now) +
			m.tuning.ImportanceWeight*entry.Importance
		ranked = append(ranked, scored{entry: entry, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]types.MemoryEntry, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, s.entry)
	}
	return out
}

// SearchSimilar runs semantic retrieval when an embedder is configured.
func (m *Manager) SearchSimilar(ctx context.Context, query string, topK int, threshold float64) ([]types.MemoryEntry, error) {
	if m.embedder == nil || m.repo == nil || query == "" {
		return nil, nil
	}
	vec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return m.repo.SearchSimilar(ctx, vec, topK, threshold)
}

func keywordScore(content string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// recencyScore decays linearly over a week.
func recencyScore(ts, now time.Time) float64 {
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	score := 1 - age.Hours()/(7*24)
	if score < 0 {
		return 0
	}
	return score
}

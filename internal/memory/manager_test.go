package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/types"
)

type fakeRepo struct {
	entries    []types.MemoryEntry
	addErr     error
	deleted    int
	similar    []types.MemoryEntry
	lastSearch []float32
}

func (f *fakeRepo) Add(_ context.Context, entry types.MemoryEntry, _ []float32) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRepo) Recent(_ context.Context, limit int) ([]types.MemoryEntry, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return append([]types.MemoryEntry(nil), f.entries[len(f.entries)-limit:]...), nil
}

func (f *fakeRepo) Count(_ context.Context) (int, error) {
	return len(f.entries), nil
}

func (f *fakeRepo) DeleteOldest(_ context.Context, n int) error {
	if n > len(f.entries) {
		n = len(f.entries)
	}
	f.entries = f.entries[n:]
	f.deleted += n
	return nil
}

func (f *fakeRepo) ExistsContent(_ context.Context, content string) (bool, error) {
	for _, e := range f.entries {
		if e.Content == content {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) SearchSimilar(_ context.Context, embedding []float32, _ int, _ float64) ([]types.MemoryEntry, error) {
	f.lastSearch = embedding
	return f.similar, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) EmbedDocument(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

func newTestManager(repo Repo, embedder Embedder) *Manager {
	return NewManager(context.Background(), repo, embedder, config.DefaultTuning().Memory, 5, 8)
}

func TestAddRejectsLowImportance(t *testing.T) {
	repo := &fakeRepo{}
	m := newTestManager(repo, nil)

	if m.Add(context.Background(), "今天天气不错", 0.1, time.Now()) {
		t.Fatal("expected low importance entry to be rejected")
	}
	if len(repo.entries) != 0 {
		t.Fatalf("expected nothing persisted, got %d entries", len(repo.entries))
	}
}

func TestAddDeduplicatesContent(t *testing.T) {
	repo := &fakeRepo{}
	m := newTestManager(repo, nil)
	now := time.Now()

	if !m.Add(context.Background(), "她喜欢爵士乐", 0.8, now) {
		t.Fatal("first add should succeed")
	}
	if m.Add(context.Background(), "她喜欢爵士乐", 0.9, now.Add(time.Minute)) {
		t.Fatal("duplicate content should be rejected")
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(repo.entries))
	}
}

func TestAddPrunesOldestAtCapacity(t *testing.T) {
	repo := &fakeRepo{}
	m := NewManager(context.Background(), repo, nil, config.DefaultTuning().Memory, 10, 3)
	now := time.Now()

	contents := []string{"a1", "b2", "c3", "d4"}
	for i, c := range contents {
		if !m.Add(context.Background(), c, 0.5, now.Add(time.Duration(i)*time.Minute)) {
			t.Fatalf("add %q failed", c)
		}
	}
	if repo.deleted == 0 {
		t.Fatal("expected oldest entries to be pruned at capacity")
	}
	for _, e := range repo.entries {
		if e.Content == "a1" {
			t.Fatal("oldest entry should have been pruned first")
		}
	}
}

func TestAddSurvivesPersistenceFailure(t *testing.T) {
	repo := &fakeRepo{addErr: errors.New("connection refused")}
	m := newTestManager(repo, nil)

	if !m.Add(context.Background(), "记住这件事", 0.7, time.Now()) {
		t.Fatal("persistence failure should not reject the entry")
	}
	got := m.Recent(1)
	if len(got) != 1 || got[0].Content != "记住这件事" {
		t.Fatalf("working set should hold the entry, got %+v", got)
	}
}

func TestWorkingSetBounded(t *testing.T) {
	m := NewManager(context.Background(), nil, nil, config.DefaultTuning().Memory, 3, 100)
	now := time.Now()

	for i, c := range []string{"m1", "m2", "m3", "m4", "m5"} {
		m.Add(context.Background(), c, 0.5, now.Add(time.Duration(i)*time.Second))
	}
	got := m.Recent(10)
	if len(got) != 3 {
		t.Fatalf("expected working set capped at 3, got %d", len(got))
	}
	if got[0].Content != "m3" || got[2].Content != "m5" {
		t.Fatalf("expected oldest-first window [m3..m5], got %+v", got)
	}
}

func TestRecentForIntimacyScalesWindow(t *testing.T) {
	m := NewManager(context.Background(), nil, nil, config.DefaultTuning().Memory, 20, 100)
	now := time.Now()
	for i := 0; i < 15; i++ {
		m.Add(context.Background(), fmt.Sprintf("entry-%d", i), 0.5, now.Add(time.Duration(i)*time.Second))
	}

	if got := len(m.RecentForIntimacy(0)); got != 3 {
		t.Fatalf("distant recall window = %d, want 3", got)
	}
	if got := len(m.RecentForIntimacy(1)); got != 10 {
		t.Fatalf("bonded recall window = %d, want 10", got)
	}
	if len(m.RecentForIntimacy(0.5)) <= len(m.RecentForIntimacy(0)) {
		t.Fatal("recall window should grow with intimacy")
	}
}

func TestRetrieveWeightedPrefersKeywordMatch(t *testing.T) {
	m := NewManager(context.Background(), nil, nil, config.DefaultTuning().Memory, 10, 100)
	now := time.Now()
	m.Add(context.Background(), "she mentioned her cat yesterday", 0.4, now.Add(-time.Hour))
	m.Add(context.Background(), "work was exhausting", 0.4, now.Add(-time.Minute))

	got := m.RetrieveWeighted("how is the cat", 1, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	if got[0].Content != "she mentioned her cat yesterday" {
		t.Fatalf("keyword match should outrank recency, got %q", got[0].Content)
	}
}

func TestRetrieveWeightedBreaksTiesByImportance(t *testing.T) {
	m := NewManager(context.Background(), nil, nil, config.DefaultTuning().Memory, 10, 100)
	now := time.Now()
	m.Add(context.Background(), "minor detail", 0.35, now)
	m.Add(context.Background(), "major confession", 0.95, now)

	got := m.RetrieveWeighted("unrelated query", 1, now)
	if len(got) != 1 || got[0].Content != "major confession" {
		t.Fatalf("importance should break the tie, got %+v", got)
	}
}

func TestSearchSimilarUsesQueryEmbedding(t *testing.T) {
	repo := &fakeRepo{similar: []types.MemoryEntry{{Content: "匹配到的记忆"}}}
	embedder := &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	m := newTestManager(repo, embedder)

	got, err := m.SearchSimilar(context.Background(), "查询", 5, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Content != "匹配到的记忆" {
		t.Fatalf("unexpected results: %+v", got)
	}
	if len(repo.lastSearch) != 3 {
		t.Fatalf("expected query embedding forwarded, got %v", repo.lastSearch)
	}
}

func TestSearchSimilarWithoutEmbedder(t *testing.T) {
	m := newTestManager(&fakeRepo{}, nil)

	got, err := m.SearchSimilar(context.Background(), "查询", 5, 0.5)
	if err != nil || got != nil {
		t.Fatalf("expected graceful no-op, got %v, %v", got, err)
	}
}

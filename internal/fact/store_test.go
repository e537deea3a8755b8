package fact

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/easeaico/companion-engine/internal/config"
	"github.com/easeaico/companion-engine/internal/genservice"
	"github.com/easeaico/companion-engine/internal/types"
)

type fakeRepo struct {
	facts map[string]types.FactEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{facts: make(map[string]types.FactEntry)}
}

func (f *fakeRepo) Get(_ context.Context, key string) (*types.FactEntry, error) {
	entry, ok := f.facts[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeRepo) Upsert(_ context.Context, entry types.FactEntry) error {
	f.facts[entry.Key] = entry
	return nil
}

func (f *fakeRepo) ListActive(_ context.Context) ([]types.FactEntry, error) {
	var out []types.FactEntry
	for _, entry := range f.facts {
		if entry.Status != types.FactStatusRejected {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeGen struct {
	reply string
	err   error
	calls int
}

func (f *fakeGen) Generate(context.Context, *genservice.Request) (*genservice.Response, error) {
	f.calls++
	if f.err != nil {
		return &genservice.Response{Success: false, Err: f.err.Error()}, f.err
	}
	return &genservice.Response{Content: f.reply, Success: true}, nil
}

func (f *fakeGen) GenerateStream(context.Context, *genservice.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {}
}

func testStore(repo Repo, gen genservice.Client) *Store {
	return NewStore(repo, gen, config.DefaultTuning().Fact)
}

func TestExtractBilingual(t *testing.T) {
	cases := []struct {
		text  string
		key   string
		value string
	}{
		{"我叫小雨，很高兴认识你", KeyName, "小雨"},
		{"My name is Alex, nice to meet you", KeyName, "Alex"},
		{"我是一名护士", KeyRole, "护士"},
		{"i work as an engineer.", KeyRole, "engineer"},
		{"我来自成都", KeyOrigin, "成都"},
		{"I'm from Lisbon!", KeyOrigin, "Lisbon"},
		{"我最近在准备考研", KeyCurrentStatus, "准备考研"},
		{"我的目标是开一家店", KeyGoal, "开一家店"},
		{"我喜欢爵士乐", KeyPrefLike, "爵士乐"},
		{"I really hate mondays, honestly", KeyPrefDislike, "mondays"},
	}
	for _, tc := range cases {
		got := Extract(tc.text)
		found := false
		for _, c := range got {
			if c.Key == tc.key && c.Value == tc.value {
				found = true
			}
		}
		if !found {
			t.Errorf("Extract(%q) = %+v, want %s=%q", tc.text, got, tc.key, tc.value)
		}
	}
}

func TestExtractOneCandidatePerKey(t *testing.T) {
	got := Extract("我喜欢爵士乐，我超爱猫")
	likes := 0
	for _, c := range got {
		if c.Key == KeyPrefLike {
			likes++
		}
	}
	if likes != 1 {
		t.Fatalf("expected one preference_like candidate, got %d", likes)
	}
}

func TestSetVerifiedImmutable(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	repo.facts[KeyName] = types.FactEntry{
		Key: KeyName, Value: "小雨", Source: types.FactSourceConfirmed,
		Confidence: 0.9, UpdatedAt: now.Add(-400 * 24 * time.Hour),
		Status: types.FactStatusVerified,
	}
	s := testStore(repo, nil)

	ok, err := s.Set(context.Background(), types.FactEntry{
		Key: KeyName, Value: "阿哲", Confidence: 1.0,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("verified fact must never be overwritten")
	}
	if repo.facts[KeyName].Value != "小雨" {
		t.Fatalf("verified value changed to %q", repo.facts[KeyName].Value)
	}
}

func TestSetActiveDecayedConflict(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	// Defaults: decayRate 0.5, window 90d. At 45d the stored 0.8 decays to 0.6.
	repo.facts[KeyRole] = types.FactEntry{
		Key: KeyRole, Value: "护士", Confidence: 0.8,
		UpdatedAt: now.Add(-45 * 24 * time.Hour), Status: types.FactStatusActive,
	}
	s := testStore(repo, nil)

	ok, err := s.Set(context.Background(), types.FactEntry{
		Key: KeyRole, Value: "医生", Confidence: 0.55,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || repo.facts[KeyRole].Value != "护士" {
		t.Fatal("confidence below decayed threshold must not overwrite")
	}

	ok, err = s.Set(context.Background(), types.FactEntry{
		Key: KeyRole, Value: "医生", Confidence: 0.65,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || repo.facts[KeyRole].Value != "医生" {
		t.Fatal("confidence above decayed threshold should overwrite")
	}
}

func TestSetRejectedOverwritable(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	repo.facts[KeyGoal] = types.FactEntry{
		Key: KeyGoal, Value: "旧目标", Confidence: 0.95,
		UpdatedAt: now, Status: types.FactStatusRejected,
	}
	s := testStore(repo, nil)

	ok, err := s.Set(context.Background(), types.FactEntry{
		Key: KeyGoal, Value: "新目标", Confidence: 0.3,
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || repo.facts[KeyGoal].Value != "新目标" {
		t.Fatal("rejected fact should accept any replacement")
	}
}

func TestIngestMessageRegexOnly(t *testing.T) {
	repo := newFakeRepo()
	s := testStore(repo, nil)

	written := s.IngestMessage(context.Background(), "我叫小雨，我喜欢爵士乐", time.Now())
	if written != 2 {
		t.Fatalf("expected 2 facts written, got %d", written)
	}
	if got := repo.facts[KeyName].Confidence; got != 0.6 {
		t.Fatalf("regex-only confidence = %v, want 0.6", got)
	}
	if got := repo.facts[KeyName].Source; got != types.FactSourceInferred {
		t.Fatalf("source = %v, want inferred", got)
	}
}

func TestIngestMessageDisambiguation(t *testing.T) {
	repo := newFakeRepo()
	gen := &fakeGen{reply: "是"}
	s := testStore(repo, gen)

	written := s.IngestMessage(context.Background(), "我来自成都", time.Now())
	if written != 1 {
		t.Fatalf("expected 1 fact written, got %d", written)
	}
	if got := repo.facts[KeyOrigin].Confidence; got != 0.8 {
		t.Fatalf("disambiguated confidence = %v, want 0.8", got)
	}
	if gen.calls != 1 {
		t.Fatalf("expected 1 disambiguation call, got %d", gen.calls)
	}
}

func TestIngestMessageDisambiguationRejects(t *testing.T) {
	repo := newFakeRepo()
	s := testStore(repo, &fakeGen{reply: "否"})

	if written := s.IngestMessage(context.Background(), "我来自成都", time.Now()); written != 0 {
		t.Fatalf("rejected candidate should not be stored, wrote %d", written)
	}
	if len(repo.facts) != 0 {
		t.Fatalf("expected empty store, got %+v", repo.facts)
	}
}

func TestIngestMessageDisambiguationFailureDegrades(t *testing.T) {
	repo := newFakeRepo()
	s := testStore(repo, &fakeGen{err: errors.New("timeout")})

	if written := s.IngestMessage(context.Background(), "我来自成都", time.Now()); written != 1 {
		t.Fatalf("extraction should survive disambiguation failure, wrote %d", written)
	}
	if got := repo.facts[KeyOrigin].Confidence; got != 0.6 {
		t.Fatalf("degraded confidence = %v, want 0.6", got)
	}
}

func TestVerifyFreezesFact(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	s := testStore(repo, nil)

	if _, err := s.Set(context.Background(), types.FactEntry{
		Key: KeyName, Value: "小雨", Confidence: 0.6,
	}, now); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Verify(context.Background(), KeyName); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if repo.facts[KeyName].Status != types.FactStatusVerified {
		t.Fatalf("status = %v, want verified", repo.facts[KeyName].Status)
	}

	ok, _ := s.Set(context.Background(), types.FactEntry{
		Key: KeyName, Value: "别的名字", Confidence: 1.0,
	}, now.Add(time.Hour))
	if ok {
		t.Fatal("verified fact overwritten after Verify")
	}
}

package learnqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/retention/internal/apperr"
	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/database/databasetest"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

const (
	user     = int64(1)
	language = int64(1)
	model    = "ema_v1"
)

func newTestManager(t *testing.T, selector ConceptSelector) (*Manager, *sqlx.DB) {
	t.Helper()
	db := databasetest.OpenMemory(t)
	log := logger.NewNop()
	concepts := database.NewConceptRepository(db, log)
	if selector == nil {
		selector = concepts
	}
	m := NewManager(db,
		database.NewLearnQueueRepository(db, log),
		database.NewLearnSettingsRepository(db, log),
		selector,
		log,
	)
	m.now = func() time.Time { return time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC) }
	return m, db
}

func seed(t *testing.T, db *sqlx.DB, kind string, n int) []int64 {
	t.Helper()
	var ids []int64
	for i := 0; i < n; i++ {
		ids = append(ids, databasetest.SeedConcept(t, db, language, kind, "A1", fmt.Sprintf("%s-%d", kind, i)))
	}
	return ids
}

func entries(t *testing.T, m *Manager, kind string) []models.LearnQueueEntry {
	t.Helper()
	got, err := m.Entries(context.Background(), user, language, kind)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	return got
}

func conceptSet(es []models.LearnQueueEntry) map[int64]bool {
	set := make(map[int64]bool)
	for _, e := range es {
		set[e.ConceptID] = true
	}
	return set
}

func markAll(t *testing.T, m *Manager, es []models.LearnQueueEntry) {
	t.Helper()
	for _, e := range es {
		if err := m.MarkCorrect(context.Background(), user, language, e.ConceptID, e.Modality); err != nil {
			t.Fatalf("MarkCorrect: %v", err)
		}
	}
}

func TestEnsureQueueFillsVocabChunk(t *testing.T) {
	m, db := newTestManager(t, nil)
	ids := seed(t, db, models.KindVocab, 7)

	if err := m.EnsureQueue(context.Background(), user, language, models.KindVocab, 5, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}

	got := entries(t, m, models.KindVocab)
	if len(got) != 10 {
		t.Fatalf("got %d entries, want 10", len(got))
	}
	perConcept := make(map[int64][]string)
	for _, e := range got {
		if e.CorrectOnce {
			t.Errorf("fresh entry %d/%s already correct", e.ConceptID, e.Modality)
		}
		perConcept[e.ConceptID] = append(perConcept[e.ConceptID], e.Modality)
	}
	for _, id := range ids[:5] {
		if len(perConcept[id]) != 2 {
			t.Errorf("concept %d has modalities %v, want reception and production", id, perConcept[id])
		}
	}
}

func TestEnsureQueueGrammarGetsReceptionOnly(t *testing.T) {
	m, db := newTestManager(t, nil)
	seed(t, db, models.KindGrammar, 3)
	seed(t, db, models.KindVocab, 3)

	if err := m.EnsureQueue(context.Background(), user, language, models.KindGrammar, 2, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	got := entries(t, m, models.KindGrammar)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	for _, e := range got {
		if e.Modality != models.ModalityReception || e.Kind != models.KindGrammar {
			t.Errorf("unexpected entry %+v", e)
		}
	}
	if v := entries(t, m, models.KindVocab); len(v) != 0 {
		t.Errorf("vocab queue touched: %d entries", len(v))
	}
}

func TestEnsureQueueKeepsIncompleteChunk(t *testing.T) {
	m, db := newTestManager(t, nil)
	seed(t, db, models.KindVocab, 10)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	before := entries(t, m, models.KindVocab)
	// all but the last entry
	markAll(t, m, before[:len(before)-1])

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	after := entries(t, m, models.KindVocab)
	if len(after) != len(before) {
		t.Fatalf("queue size changed from %d to %d", len(before), len(after))
	}
	for i := range after {
		if after[i].ConceptID != before[i].ConceptID || after[i].Modality != before[i].Modality {
			t.Errorf("entry %d replaced: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestEnsureQueueRefillsCompletedChunk(t *testing.T) {
	m, db := newTestManager(t, nil)
	seed(t, db, models.KindVocab, 4)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	first := entries(t, m, models.KindVocab)
	markAll(t, m, first)

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	second := entries(t, m, models.KindVocab)
	// only one fresh concept is left
	if len(second) != 2 {
		t.Fatalf("got %d entries, want 2", len(second))
	}
	old := conceptSet(first)
	for _, e := range second {
		if e.CorrectOnce {
			t.Errorf("refilled entry %d/%s already correct", e.ConceptID, e.Modality)
		}
		if old[e.ConceptID] {
			t.Errorf("concept %d from the finished chunk was queued again", e.ConceptID)
		}
	}
}

func TestEnsureQueueExhaustedCatalog(t *testing.T) {
	m, db := newTestManager(t, nil)
	seed(t, db, models.KindVocab, 2)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 5, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	markAll(t, m, entries(t, m, models.KindVocab))

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 5, model); err != nil {
		t.Fatalf("EnsureQueue with nothing left = %v, want nil", err)
	}
	if got := entries(t, m, models.KindVocab); len(got) != 0 {
		t.Errorf("got %d entries, want an empty queue", len(got))
	}
}

func TestEnsureQueueZeroChunkClears(t *testing.T) {
	m, db := newTestManager(t, nil)
	seed(t, db, models.KindVocab, 3)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 0, model); err != nil {
		t.Fatalf("EnsureQueue(0): %v", err)
	}
	if got := entries(t, m, models.KindVocab); len(got) != 0 {
		t.Errorf("got %d entries after clearing, want 0", len(got))
	}
}

type stubSelector struct {
	fresh []int64
	err   error
}

func (s *stubSelector) SelectFreshConcepts(ctx context.Context, userID, languageID int64, kind, modelKey string, limit int) ([]int64, error) {
	return s.fresh, s.err
}

func (s *stubSelector) SelectDueConcepts(ctx context.Context, userID, languageID int64, modelKey string, limit int, dueBefore time.Time) ([]int64, error) {
	return nil, s.err
}

func TestEnsureQueueSelectorFailureLeavesQueue(t *testing.T) {
	sel := &stubSelector{}
	m, db := newTestManager(t, sel)
	sel.fresh = seed(t, db, models.KindGrammar, 2)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, models.KindGrammar, 2, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	markAll(t, m, entries(t, m, models.KindGrammar))

	sel.err = fmt.Errorf("catalog offline")
	err := m.EnsureQueue(ctx, user, language, models.KindGrammar, 2, model)
	if !apperr.IsStore(err) {
		t.Fatalf("error = %v, want store failure", err)
	}
	got := entries(t, m, models.KindGrammar)
	if len(got) != 2 || !got[0].CorrectOnce || !got[1].CorrectOnce {
		t.Errorf("completed queue was modified: %+v", got)
	}
}

func TestEnsureQueueCapsSelectorResult(t *testing.T) {
	sel := &stubSelector{}
	m, db := newTestManager(t, sel)
	sel.fresh = seed(t, db, models.KindGrammar, 4)

	if err := m.EnsureQueue(context.Background(), user, language, models.KindGrammar, 2, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	if got := entries(t, m, models.KindGrammar); len(got) != 2 {
		t.Errorf("got %d entries, want 2", len(got))
	}
}

func TestChunkProgress(t *testing.T) {
	m, db := newTestManager(t, nil)
	ids := seed(t, db, models.KindVocab, 3)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	// both modalities for the first concept, one for the second
	for _, step := range []struct {
		id       int64
		modality string
	}{
		{ids[0], models.ModalityReception},
		{ids[0], models.ModalityProduction},
		{ids[1], models.ModalityReception},
	} {
		if err := m.MarkCorrect(ctx, user, language, step.id, step.modality); err != nil {
			t.Fatalf("MarkCorrect: %v", err)
		}
	}

	p, err := m.ChunkProgress(ctx, user, language, models.KindVocab)
	if err != nil {
		t.Fatalf("ChunkProgress: %v", err)
	}
	if p.TotalConcepts != 3 || p.CompletedConcepts != 1 {
		t.Errorf("progress = %+v, want 1 of 3", p)
	}
}

func TestMarkCorrectIgnoresUnqueuedConcept(t *testing.T) {
	m, db := newTestManager(t, nil)
	ids := seed(t, db, models.KindVocab, 1)
	if err := m.MarkCorrect(context.Background(), user, language, ids[0], models.ModalityReception); err != nil {
		t.Errorf("MarkCorrect on unqueued concept = %v, want nil", err)
	}
}

func TestEnsureForSettingsUsesStoredChunkSizes(t *testing.T) {
	m, db := newTestManager(t, nil)
	seed(t, db, models.KindVocab, 8)
	seed(t, db, models.KindGrammar, 8)
	ctx := context.Background()

	if err := m.EnsureForSettings(ctx, user, language, model); err != nil {
		t.Fatalf("EnsureForSettings: %v", err)
	}
	// defaults: 5 vocab concepts, 2 grammar concepts
	if got := entries(t, m, models.KindVocab); len(got) != 10 {
		t.Errorf("vocab entries = %d, want 10", len(got))
	}
	if got := entries(t, m, models.KindGrammar); len(got) != 2 {
		t.Errorf("grammar entries = %d, want 2", len(got))
	}

	s, err := m.Settings(ctx, user, language)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	s.GrammarChunkSize = 0
	if err := m.UpdateSettings(ctx, s); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if err := m.EnsureForSettings(ctx, user, language, model); err != nil {
		t.Fatalf("EnsureForSettings: %v", err)
	}
	if got := entries(t, m, models.KindGrammar); len(got) != 0 {
		t.Errorf("grammar entries = %d after disabling, want 0", len(got))
	}
}

func TestInvalidArguments(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, "idiom", 3, model); !apperr.IsInvalid(err) {
		t.Errorf("unknown kind: err = %v, want invalid input", err)
	}
	if err := m.MarkCorrect(ctx, user, language, 1, "osmosis"); !apperr.IsInvalid(err) {
		t.Errorf("unknown modality: err = %v, want invalid input", err)
	}
	if _, err := m.ChunkProgress(ctx, 0, language, models.KindVocab); !apperr.IsInvalid(err) {
		t.Errorf("zero user: err = %v, want invalid input", err)
	}
	bad := models.DefaultLearnSettings(user, language)
	bad.VocabChunkSize = -1
	if err := m.UpdateSettings(ctx, &bad); !apperr.IsInvalid(err) {
		t.Errorf("negative chunk size: err = %v, want invalid input", err)
	}
}

func TestComputeProgress(t *testing.T) {
	e := func(id int64, modality string, ok bool) models.LearnQueueEntry {
		return models.LearnQueueEntry{ConceptID: id, Modality: modality, CorrectOnce: ok}
	}
	tests := []struct {
		name    string
		entries []models.LearnQueueEntry
		want    models.ChunkProgress
	}{
		{"empty", nil, models.ChunkProgress{}},
		{"fresh", []models.LearnQueueEntry{e(1, "reception", false), e(1, "production", false)}, models.ChunkProgress{TotalConcepts: 1}},
		{"half done", []models.LearnQueueEntry{e(1, "production", true), e(1, "reception", false)}, models.ChunkProgress{TotalConcepts: 1}},
		{"second modality missing", []models.LearnQueueEntry{e(1, "production", false), e(1, "reception", true)}, models.ChunkProgress{TotalConcepts: 1}},
		{"mixed", []models.LearnQueueEntry{e(1, "reception", true), e(2, "reception", false), e(3, "reception", true)}, models.ChunkProgress{TotalConcepts: 3, CompletedConcepts: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := computeProgress(tt.entries); got != tt.want {
				t.Errorf("computeProgress = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDueForReview(t *testing.T) {
	m, db := newTestManager(t, nil)
	ids := seed(t, db, models.KindVocab, 2)
	now := m.now()
	for i, due := range []time.Time{now.Add(-time.Hour), now.Add(time.Hour)} {
		_, err := db.Exec(`
			INSERT INTO user_concept_mastery (user_id, concept_id, modality, model_key, mastery, half_life_days, due_at, updated_at)
			VALUES (1, ?, 'reception', 'ema_v1', 0.5, 1.5, ?, ?)`, ids[i], due, now)
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.DueForReview(context.Background(), user, language, model, 10)
	if err != nil {
		t.Fatalf("DueForReview: %v", err)
	}
	if len(got) != 1 || got[0] != ids[0] {
		t.Errorf("due = %v, want [%d]", got, ids[0])
	}
}

func TestConcurrentEnsureAndMark(t *testing.T) {
	m, db := newTestManager(t, nil)
	seed(t, db, models.KindVocab, 10)
	ctx := context.Background()

	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	first := entries(t, m, models.KindVocab)

	var wg sync.WaitGroup
	errs := make(chan error, 2*len(first)+20)
	for _, e := range first {
		wg.Add(1)
		go func(e models.LearnQueueEntry) {
			defer wg.Done()
			errs <- m.MarkCorrect(ctx, user, language, e.ConceptID, e.Modality)
		}(e)
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}

	// settle: the last call sees the final state of the marks
	if err := m.EnsureQueue(ctx, user, language, models.KindVocab, 3, model); err != nil {
		t.Fatalf("EnsureQueue: %v", err)
	}
	got := entries(t, m, models.KindVocab)
	if len(got) != 6 || len(conceptSet(got)) != 3 {
		t.Fatalf("queue = %+v, want one chunk of 3 concepts", got)
	}
	old := conceptSet(first)
	for _, e := range got {
		if old[e.ConceptID] {
			t.Errorf("concept %d from the finished chunk is still queued", e.ConceptID)
		}
		if e.CorrectOnce {
			t.Errorf("entry %d/%s already correct", e.ConceptID, e.Modality)
		}
	}
}

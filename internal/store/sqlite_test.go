package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-brain/internal/model"
)

func newTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"), opts...)
	require.NoError(t, err, "create store")
	t.Cleanup(func() { s.Close() })
	return s
}

func rec(owner, session, user, agent, mood string) model.MemoryRecord {
	return model.MemoryRecord{
		OwnerID:         owner,
		SessionID:       session,
		UserText:        user,
		AgentText:       agent,
		MoodTag:         mood,
		ImportanceScore: 0.5,
	}
}

func TestInsertAndScanRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithVectorDimension(3))

	in := model.MemoryRecord{
		OwnerID:         "robotA",
		SessionID:       "S1",
		ContextID:       "ctx-1",
		UserText:        "I like cats",
		AgentText:       "Cats are great",
		MoodTag:         "excited",
		TouchZone:       model.Zone(model.TouchBack),
		ImportanceScore: 0.9,
		Kind:            model.KindInteraction,
		Embedding:       []float32{0.1, 0.2, 0.3},
		Metadata:        map[string]any{"interaction_count": float64(2), "session_length": float64(2)},
	}
	stored, err := s.Insert(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())

	got, err := s.ScanBySession(ctx, "S1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)

	out := got[0]
	assert.Equal(t, stored.ID, out.ID)
	assert.True(t, stored.CreatedAt.Equal(out.CreatedAt))
	out.ID, out.CreatedAt = in.ID, in.CreatedAt
	assert.Equal(t, in, out)
}

func TestVectorStoredAsJSONText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithVectorDimension(3))

	in := rec("robotA", "S1", "hi", "hello", "neutral")
	in.Embedding = []float32{0.5, -1, 2}
	stored, err := s.Insert(ctx, in)
	require.NoError(t, err)

	var raw string
	err = s.db.QueryRowContext(ctx, "SELECT vector FROM memory_records WHERE id = ?", stored.ID).Scan(&raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[0.5,-1,2]`, raw)
}

func TestInsertDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r, err := s.Insert(ctx, rec("robotA", "S1", "hi", "", ""))
	require.NoError(t, err)
	assert.Equal(t, model.MoodNeutral, r.MoodTag)
	assert.Equal(t, model.KindInteraction, r.Kind)

	got, _ := s.ScanBySession(ctx, "S1", 1)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Embedding)
	assert.Nil(t, got[0].TouchZone)
}

func TestInsertValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithVectorDimension(4))

	tests := []struct {
		name string
		r    model.MemoryRecord
	}{
		{"missing owner", rec("", "S1", "a", "b", "happy")},
		{"missing session", rec("robotA", "", "a", "b", "happy")},
		{"importance above one", func() model.MemoryRecord { r := rec("robotA", "S1", "a", "b", "happy"); r.ImportanceScore = 1.5; return r }()},
		{"wrong dims", func() model.MemoryRecord { r := rec("robotA", "S1", "a", "b", "happy"); r.Embedding = []float32{1}; return r }()},
		{"bad zone", func() model.MemoryRecord { r := rec("robotA", "S1", "a", "b", "happy"); r.TouchZone = model.Zone(9); return r }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Insert(ctx, tt.r)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestInsertOnClosedStoreIsStorageError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Insert(context.Background(), rec("robotA", "S1", "a", "b", "happy"))
	var se *StorageError
	assert.True(t, errors.As(err, &se), "expected StorageError, got %v", err)
}

func TestScanBySessionMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, rec("robotA", "S1", fmt.Sprintf("u%d", i), "a", "neutral"))
		require.NoError(t, err)
	}
	s.Insert(ctx, rec("robotA", "S2", "other", "a", "neutral"))

	got, err := s.ScanBySession(ctx, "S1", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "u4", got[0].UserText)
	assert.Equal(t, "u3", got[1].UserText)
	assert.Equal(t, "u2", got[2].UserText)
}

func TestScanByOwnerFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	withVec := rec("robotA", "S1", "vec", "a", "happy")
	withVec.Embedding = []float32{1, 0}
	s.Insert(ctx, withVec)

	sad := rec("robotA", "S1", "sad low", "a", "sad")
	sad.ImportanceScore = 0.2
	s.Insert(ctx, sad)

	sadHigh := rec("robotA", "S2", "sad high", "a", "sad")
	sadHigh.ImportanceScore = 0.9
	s.Insert(ctx, sadHigh)

	s.Insert(ctx, rec("robotB", "S3", "not mine", "a", "sad"))

	all, err := s.ScanByOwner(ctx, "robotA", 10, ScanFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "sad high", all[0].UserText)

	vec, err := s.ScanByOwner(ctx, "robotA", 10, ScanFilter{WithEmbedding: true})
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.Equal(t, "vec", vec[0].UserText)

	moods, err := s.ScanByOwner(ctx, "robotA", 10, ScanFilter{Moods: []string{"sad", "angry"}, ByImportance: true})
	require.NoError(t, err)
	require.Len(t, moods, 2)
	assert.Equal(t, "sad high", moods[0].UserText)
	assert.Equal(t, "sad low", moods[1].UserText)
}

func TestStartSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, err := s.StartSession(ctx, "robotA", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := s.StartSession(ctx, "robotA", id)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "robotA", sess.OwnerID)
	assert.Equal(t, 0, sess.InteractionCount)

	_, err = s.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	first, err := s.FirstSeen(ctx, "robotA")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), first, time.Minute)
}

func TestUpdateSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id, _ := s.StartSession(ctx, "robotA", "S1")
	require.NoError(t, s.UpdateSession(ctx, model.Session{
		ID: id, OwnerID: "robotA", InteractionCount: 3, MoodSummary: "happy", ContextSummary: "user said 'hi'",
	}))

	sess, err := s.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.InteractionCount)
	assert.Equal(t, "happy", sess.MoodSummary)
	assert.Equal(t, "user said 'hi'", sess.ContextSummary)

	err = s.UpdateSession(ctx, model.Session{ID: "nope", OwnerID: "robotA"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurgeSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.Insert(ctx, rec("robotA", "S1", "a", "b", "happy"))
	s.Insert(ctx, rec("robotA", "S1", "c", "d", "sad"))
	s.Insert(ctx, rec("robotA", "S2", "e", "f", "sad"))

	n, err := s.PurgeSession(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, _ := s.ScanBySession(ctx, "S1", 10)
	assert.Empty(t, left)
	other, _ := s.ScanBySession(ctx, "S2", 10)
	assert.Len(t, other, 1)

	_, err = s.GetSession(ctx, "S1")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err = s.PurgeSession(ctx, "S1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentInsertsSameOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := s.Insert(ctx, rec("robotA", fmt.Sprintf("S%d", i), fmt.Sprintf("%d-%d", i, j), "a", "neutral"))
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	st, err := s.Stats(ctx, "robotA")
	require.NoError(t, err)
	assert.Equal(t, 40, st.TotalRecords)
	assert.Equal(t, 4, st.TotalSessions)

	// each session keeps its own submission order
	for i := 0; i < 4; i++ {
		got, _ := s.ScanBySession(ctx, fmt.Sprintf("S%d", i), 10)
		require.Len(t, got, 10)
		assert.Equal(t, fmt.Sprintf("%d-9", i), got[0].UserText)
		assert.Equal(t, fmt.Sprintf("%d-0", i), got[9].UserText)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithVectorDimension(384))

	for _, tc := range []struct {
		mood  string
		score float64
	}{{"happy", 0.9}, {"happy", 0.6}, {"sad", 0.3}, {"neutral", 0.8}} {
		r := rec("robotA", "S1", "u", "a", tc.mood)
		r.ImportanceScore = tc.score
		r.Metadata = map[string]any{"audio_seconds": 1.5}
		_, err := s.Insert(ctx, r)
		require.NoError(t, err)
	}
	s.Insert(ctx, rec("robotB", "S9", "u", "a", "angry"))

	st, err := s.Stats(ctx, "robotA")
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalRecords)
	assert.Equal(t, 1, st.TotalSessions)
	assert.Equal(t, map[string]int{"happy": 2, "sad": 1, "neutral": 1}, st.MoodHistogram)
	assert.Equal(t, map[string]int{BandHigh: 2, BandMedium: 1, BandLow: 1}, st.ImportanceBands)
	assert.InDelta(t, 6.0, st.AudioSeconds, 1e-9)
	assert.Equal(t, 384, st.VectorDimension)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "brain.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	s.Insert(ctx, rec("robotA", "S1", "persist me", "ok", "happy"))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.ScanBySession(ctx, "S1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persist me", got[0].UserText)
}

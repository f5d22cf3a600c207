package window

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/companion-brain/internal/model"
)

func exchange(i int, mood string) model.MemoryRecord {
	return model.MemoryRecord{
		ID:        fmt.Sprintf("r%d", i),
		UserText:  fmt.Sprintf("u%d", i),
		AgentText: fmt.Sprintf("a%d", i),
		MoodTag:   mood,
	}
}

func TestFIFOEviction(t *testing.T) {
	reg := NewRegistry(3)
	w := reg.Ensure("S1", "robotA")

	for i := 1; i <= 4; i++ {
		w.Append(exchange(i, "happy"))
	}

	snap := w.Snapshot()
	require.Len(t, snap.Records, 3)
	assert.Equal(t, "r2", snap.Records[0].ID)
	assert.Equal(t, "r4", snap.Records[2].ID)
	assert.Equal(t, 4, snap.InteractionCount)
	assert.Equal(t, "user said 'u2', I replied 'a2'; user said 'u3', I replied 'a3'; user said 'u4', I replied 'a4'", snap.RollingSummary)
	assert.NotContains(t, snap.RollingSummary, "u1")
}

func TestSummaryUsesLastThree(t *testing.T) {
	reg := NewRegistry(10)
	w := reg.Ensure("S1", "robotA")
	for i := 1; i <= 5; i++ {
		w.Append(exchange(i, "neutral"))
	}

	summary := reg.SummaryOf("S1")
	assert.NotContains(t, summary, "'u2'")
	assert.Contains(t, summary, "'u3'")
	assert.Contains(t, summary, "'u5'")
	assert.Empty(t, reg.SummaryOf("unknown"))
}

func TestEmotionTrendKeepsLastFive(t *testing.T) {
	w := NewRegistry(10).Ensure("S1", "robotA")
	moods := []string{"sad", "happy", "happy", "angry", "excited", "neutral", ""}
	for i, m := range moods {
		w.Append(exchange(i, m))
	}
	snap := w.Snapshot()
	assert.Equal(t, []string{"happy", "angry", "excited", "neutral", "neutral"}, snap.EmotionTrend)
	assert.Equal(t, "neutral", snap.DominantMood())
}

func TestDominantMoodTiePrefersRecent(t *testing.T) {
	s := Snapshot{EmotionTrend: []string{"sad", "happy", "sad", "happy"}}
	assert.Equal(t, "happy", s.DominantMood())
	assert.Empty(t, Snapshot{}.DominantMood())
}

func TestInsertReservesOrdinal(t *testing.T) {
	w := NewRegistry(10).Ensure("S1", "robotA")

	var ordinals, lengths []int
	for i := 0; i < 3; i++ {
		_, err := w.Insert(func(ordinal, length int) (model.MemoryRecord, error) {
			ordinals = append(ordinals, ordinal)
			lengths = append(lengths, length)
			return exchange(i, "happy"), nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3}, ordinals)
	assert.Equal(t, []int{1, 2, 3}, lengths)

	_, err := w.Insert(func(int, int) (model.MemoryRecord, error) {
		return model.MemoryRecord{}, errors.New("disk gone")
	})
	assert.Error(t, err)
	assert.Equal(t, 3, w.Snapshot().InteractionCount)
}

func TestClear(t *testing.T) {
	reg := NewRegistry(10)
	w := reg.Ensure("S1", "robotA")
	w.Append(exchange(1, "happy"))
	w.Append(exchange(2, "happy"))

	assert.Equal(t, 2, reg.Clear("S1"))
	_, ok := reg.Get("S1")
	assert.False(t, ok)
	assert.Zero(t, reg.Clear("S1"))

	fresh := reg.Ensure("S1", "robotA")
	assert.Zero(t, fresh.Snapshot().InteractionCount)
}

func TestConcurrentAppendsSameSession(t *testing.T) {
	reg := NewRegistry(100)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				reg.Ensure("S1", "robotA").Append(exchange(i*10+j, "happy"))
			}
		}(i)
	}
	wg.Wait()

	snap := reg.Ensure("S1", "robotA").Snapshot()
	assert.Equal(t, 80, snap.InteractionCount)
	assert.Len(t, snap.Records, 80)
	assert.Equal(t, 1, reg.Active())
}

func TestPureTouchSentence(t *testing.T) {
	r := model.MemoryRecord{TouchZone: model.Zone(model.TouchHead)}
	assert.Equal(t, "user touched my head", Sentence(r))
	r.AgentText = "hehe"
	assert.Equal(t, "user touched my head, I replied 'hehe'", Sentence(r))
}

func TestSeedOnlyFreshWindow(t *testing.T) {
	w := NewRegistry(10).Ensure("S1", "robotA")
	w.Seed(7)
	assert.Equal(t, 7, w.Snapshot().InteractionCount)

	w.Append(exchange(8, "happy"))
	w.Seed(100)
	assert.Equal(t, 8, w.Snapshot().InteractionCount)
}

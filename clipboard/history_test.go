package clipboard

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contents(snaps []Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Content
	}
	return out
}

func TestHistory_MoveToFront(t *testing.T) {
	h := NewHistory(3)

	require.True(t, h.Observe("a"))
	require.True(t, h.Observe("b"))
	require.True(t, h.Observe("c"))
	require.True(t, h.Observe("a"))

	assert.Equal(t, []string{"a", "c", "b"}, contents(h.List()))
}

func TestHistory_HeadNoOp(t *testing.T) {
	h := NewHistory(5)

	require.True(t, h.Observe("a"))
	require.True(t, h.Observe("b"))

	before := h.List()
	assert.False(t, h.Observe("b"), "observing the head again must report no change")
	assert.Equal(t, before, h.List())
}

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(3)

	for _, s := range []string{"a", "b", "c", "d"} {
		h.Observe(s)
	}

	assert.Equal(t, []string{"d", "c", "b"}, contents(h.List()))
}

func TestHistory_MoveToFrontPreservesOthers(t *testing.T) {
	h := NewHistory(5)

	for _, s := range []string{"a", "b", "c", "d"} {
		h.Observe(s)
	}
	h.Observe("b")

	assert.Equal(t, []string{"b", "d", "c", "a"}, contents(h.List()))
}

func TestHistory_Clear(t *testing.T) {
	h := NewHistory(3)

	// Clearing an empty history removes nothing.
	assert.False(t, h.Clear())

	h.Observe("a")
	h.Observe("b")

	assert.True(t, h.Clear())
	assert.Empty(t, h.List())

	// Idempotent
	assert.False(t, h.Clear())
	assert.Empty(t, h.List())
}

func TestHistory_At(t *testing.T) {
	h := NewHistory(3)
	h.Observe("a")
	h.Observe("b")

	snap, ok := h.At(1)
	require.True(t, ok)
	assert.Equal(t, "a", snap.Content)

	_, ok = h.At(2)
	assert.False(t, ok)
	_, ok = h.At(-1)
	assert.False(t, ok)

	head, ok := h.Head()
	require.True(t, ok)
	assert.Equal(t, "b", head.Content)
}

// Property: for any stream of observations the history never exceeds its
// capacity and never holds duplicate content.
func TestHistory_InvariantsUnderRandomStreams(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for run := 0; run < 50; run++ {
		capacity := 1 + rng.Intn(15)
		h := NewHistory(capacity)

		for i := 0; i < 500; i++ {
			h.Observe(fmt.Sprintf("item-%d", rng.Intn(30)))

			items := h.List()
			require.LessOrEqual(t, len(items), capacity)

			seen := make(map[string]bool, len(items))
			for _, s := range items {
				require.False(t, seen[s.Content], "duplicate content %q in history", s.Content)
				seen[s.Content] = true
			}
		}
	}
}

func TestHistory_ConcurrentObserveAndList(t *testing.T) {
	h := NewHistory(10)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				h.Observe(fmt.Sprintf("g%d-%d", g, i%20))
				_ = h.List()
			}
		}(g)
	}
	wg.Wait()

	items := h.List()
	assert.LessOrEqual(t, len(items), 10)
}

package queue

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLIFOPushPopOrder(t *testing.T) {
	q := NewLIFO[int](4)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	require.True(t, q.Push(3))

	var got []int
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}

	want := []int{3, 2, 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pop order mismatch (-want +got):\n%s", diff)
	}
}

func TestLIFOFullReturnsFalse(t *testing.T) {
	q := NewLIFO[int](2)
	assert.Equal(t, 2, q.Cap())
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	assert.False(t, q.Push(3))
	assert.Equal(t, 2, q.Len())
}

func TestLIFOEmptyPopReturnsFalse(t *testing.T) {
	q := NewLIFO[int](2)
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestLIFOTryStealTakesBottom(t *testing.T) {
	q := NewLIFO[int](4)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	v, ok := q.TrySteal()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestLIFOConcurrentPushPopSteal(t *testing.T) {
	q := NewLIFO[int](4096)
	const n = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !q.Push(i) {
			}
		}
	}()

	var consumed int
	var consumedMu sync.Mutex
	done := make(chan struct{})
	consume := func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if v, ok := q.Pop(); ok {
				_ = v
				consumedMu.Lock()
				consumed++
				reached := consumed == n
				consumedMu.Unlock()
				if reached {
					close(done)
					return
				}
				continue
			}
			if v, ok := q.TrySteal(); ok {
				_ = v
				consumedMu.Lock()
				consumed++
				reached := consumed == n
				consumedMu.Unlock()
				if reached {
					close(done)
					return
				}
			}
		}
	}
	wg.Add(2)
	go consume()
	go consume()

	wg.Wait()
	assert.Equal(t, n, consumed)
}

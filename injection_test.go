package dpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInjectionQueue_FIFOForSingleProducer(t *testing.T) {
	q := NewInjectionQueue[int]()
	for i := 0; i < 100; i++ {
		q.Enqueue(i)
	}
	for i := 0; i < 100; i++ {
		v, ok := q.TryDequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.TryDequeue()
	require.False(t, ok)
}

func TestInjectionQueue_EmptyDequeue(t *testing.T) {
	q := NewInjectionQueue[int]()
	_, ok := q.TryDequeue()
	require.False(t, ok)
	require.True(t, q.IsEmpty())
}

func TestInjectionQueue_ConcurrentProducersConsumersDeliverEveryItem(t *testing.T) {
	const producers = 8
	const perProducer = 5000
	const total = producers * perProducer

	q := NewInjectionQueue[int]()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(base*perProducer + i)
			}
		}(p)
	}

	seen := make([]bool, total)
	var mu sync.Mutex
	var consumersWG sync.WaitGroup
	done := make(chan struct{})

	for c := 0; c < 4; c++ {
		consumersWG.Add(1)
		go func() {
			defer consumersWG.Done()
			for {
				v, ok := q.TryDequeue()
				if ok {
					mu.Lock()
					seen[v] = true
					mu.Unlock()
					continue
				}
				select {
				case <-done:
					// Drain any stragglers left by a race.
					for {
						v, ok := q.TryDequeue()
						if !ok {
							return
						}
						mu.Lock()
						seen[v] = true
						mu.Unlock()
					}
				default:
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	consumersWG.Wait()

	for i, s := range seen {
		require.Truef(t, s, "item %d never observed", i)
	}
}

package node

import (
	"sync"
	"testing"
	"time"
)

func TestSeenCacheReserve(t *testing.T) {
	cache := NewSeenCache(100)

	deadline := time.Now().Add(time.Minute).UnixMilli()

	if cache.Seen("t1") {
		t.Fatalf("empty cache should not contain t1")
	}

	if !cache.Reserve("t1", deadline) {
		t.Fatalf("first reservation should win")
	}

	if cache.Reserve("t1", deadline) {
		t.Fatalf("second reservation should lose")
	}

	if !cache.Seen("t1") {
		t.Fatalf("reserved id should be seen")
	}
}

func TestSeenCacheEviction(t *testing.T) {
	cache := NewSeenCache(100)

	expired := time.Now().Add(-time.Second).UnixMilli()
	if !cache.Reserve("t1", expired) {
		t.Fatalf("err: reservation failed")
	}

	// the entry's deadline has passed, so any subsequent operation evicts it
	if cache.Seen("t1") {
		t.Fatalf("expired entry should be evicted")
	}

	future := time.Now().Add(time.Minute).UnixMilli()
	if !cache.Reserve("t1", future) {
		t.Fatalf("evicted id should be reservable again")
	}
}

func TestSeenCacheCapacity(t *testing.T) {
	cache := NewSeenCache(2)

	deadline := time.Now().Add(time.Minute).UnixMilli()

	if !cache.Reserve("t1", deadline) || !cache.Reserve("t2", deadline) {
		t.Fatalf("err: reservations failed")
	}

	if cache.Reserve("t3", deadline) {
		t.Fatalf("full cache should refuse new reservations")
	}

	if cache.Len() != 2 {
		t.Fatalf("len %d, expected 2", cache.Len())
	}
}

func TestSeenCacheConcurrentReserve(t *testing.T) {
	cache := NewSeenCache(100)

	deadline := time.Now().Add(time.Minute).UnixMilli()

	var wg sync.WaitGroup
	wins := make(chan struct{}, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cache.Reserve("t1", deadline) {
				wins <- struct{}{}
			}
		}()
	}

	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}

	if count != 1 {
		t.Fatalf("%d goroutines won the reservation, expected exactly 1", count)
	}
}

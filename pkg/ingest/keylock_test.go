package ingest

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("/data/a.pdf")

	acquired := make(chan struct{})
	go func() {
		defer close(acquired)
		k.Lock("/data/a.pdf")()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Zero(t, k.Len())
}

func TestKeyedMutexDistinctKeys(t *testing.T) {
	k := NewKeyedMutex()
	unlockA := k.Lock("/data/a.pdf")
	defer unlockA()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		k.Lock("/data/b.pdf")()
	}()
	wg.Wait()

	assert.Equal(t, 1, k.Len())
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePersister is an in-memory Persister with injectable failures
type fakePersister struct {
	mu      sync.Mutex
	saved   map[int]string
	loadErr error
	saveErr error
	saves   int
	closed  bool
}

func newFakePersister(initial map[int]string) *fakePersister {
	return &fakePersister{saved: initial}
}

func (f *fakePersister) Name() string { return "fake" }

func (f *fakePersister) Load(context.Context) (map[int]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[int]string, len(f.saved))
	for k, v := range f.saved {
		out[k] = v
	}
	return out, nil
}

func (f *fakePersister) Save(_ context.Context, links map[int]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = make(map[int]string, len(links))
	for k, v := range links {
		f.saved[k] = v
	}
	return nil
}

func (f *fakePersister) Close() error {
	f.closed = true
	return nil
}

func TestPersisters_Interface(t *testing.T) {
	var _ Persister = (*FilePersister)(nil)
	var _ Persister = (*RedisPersister)(nil)
	var _ Persister = (*SQLitePersister)(nil)
	var _ Pinger = (*RedisPersister)(nil)
	var _ Pinger = (*SQLitePersister)(nil)
}

func TestOpen_SeedsFromPersister(t *testing.T) {
	p := newFakePersister(map[int]string{1: "https://a.test", 20: "https://b.test"})

	s := Open(context.Background(), p, 10000, zerolog.Nop())

	assert.Equal(t, 2, s.Len())
	url, ok := s.Get(20)
	require.True(t, ok)
	assert.Equal(t, "https://b.test", url)
	assert.Equal(t, "fake", s.Backend())
}

func TestOpen_LoadFailureStartsEmpty(t *testing.T) {
	p := newFakePersister(nil)
	p.loadErr = errors.New("disk on fire")

	s := Open(context.Background(), p, 10000, zerolog.Nop())

	assert.Equal(t, 0, s.Len())
}

func TestOpen_DropsOutOfRangeKeys(t *testing.T) {
	p := newFakePersister(map[int]string{0: "zero", 5: "five", 11: "eleven"})

	s := Open(context.Background(), p, 10, zerolog.Nop())

	assert.Equal(t, map[int]string{5: "five"}, s.Snapshot())
}

func TestStore_SetGet(t *testing.T) {
	p := newFakePersister(nil)
	s := Open(context.Background(), p, 10000, zerolog.Nop())

	_, ok := s.Get(15)
	assert.False(t, ok)

	require.NoError(t, s.Set(context.Background(), 15, "https://x.test/a"))

	url, ok := s.Get(15)
	require.True(t, ok)
	assert.Equal(t, "https://x.test/a", url)
	assert.Equal(t, map[int]string{15: "https://x.test/a"}, p.saved)

	require.NoError(t, s.Set(context.Background(), 15, "https://x.test/b"))
	url, _ = s.Get(15)
	assert.Equal(t, "https://x.test/b", url)
	assert.Equal(t, 2, p.saves)
}

func TestStore_SetIdempotent(t *testing.T) {
	p := newFakePersister(nil)
	s := Open(context.Background(), p, 10000, zerolog.Nop())

	require.NoError(t, s.Set(context.Background(), 7, "https://x.test/7"))
	once := s.Snapshot()
	require.NoError(t, s.Set(context.Background(), 7, "https://x.test/7"))

	assert.Equal(t, once, s.Snapshot())
	assert.Equal(t, once, p.saved)
}

func TestStore_SetOutOfRange(t *testing.T) {
	p := newFakePersister(nil)
	s := Open(context.Background(), p, 100, zerolog.Nop())

	for _, n := range []int{0, -1, 101} {
		err := s.Set(context.Background(), n, "https://x.test")
		assert.ErrorIs(t, err, ErrOutOfRange, "n=%d", n)
	}
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, p.saves)
}

func TestStore_SetPersistFailureRollsBack(t *testing.T) {
	p := newFakePersister(map[int]string{3: "https://old.test"})
	s := Open(context.Background(), p, 10000, zerolog.Nop())
	p.saveErr = errors.New("read-only filesystem")

	err := s.Set(context.Background(), 3, "https://new.test")
	var perr *PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "fake", perr.Backend)
	assert.ErrorIs(t, err, p.saveErr)

	url, _ := s.Get(3)
	assert.Equal(t, "https://old.test", url, "failed save must not change the visible link")

	err = s.Set(context.Background(), 4, "https://new.test")
	require.Error(t, err)
	_, ok := s.Get(4)
	assert.False(t, ok, "failed insert must not leave an entry behind")
}

func TestStore_MemoryOnly(t *testing.T) {
	s := Open(context.Background(), nil, 10000, zerolog.Nop())

	require.NoError(t, s.Set(context.Background(), 1, "https://m.test"))
	url, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "https://m.test", url)
	assert.Equal(t, "memory", s.Backend())
	assert.NoError(t, s.Check(context.Background()))
	assert.NoError(t, s.Close())
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := Open(context.Background(), nil, 10000, zerolog.Nop())
	require.NoError(t, s.Set(context.Background(), 1, "https://m.test"))

	snap := s.Snapshot()
	snap[1] = "mutated"
	snap[2] = "added"

	url, _ := s.Get(1)
	assert.Equal(t, "https://m.test", url)
	assert.Equal(t, 1, s.Len())
}

func TestStore_ConcurrentSet(t *testing.T) {
	p := newFakePersister(nil)
	s := Open(context.Background(), p, 10000, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, s.Set(context.Background(), n, fmt.Sprintf("https://c.test/%d", n)))
			s.Get(n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	assert.Equal(t, s.Snapshot(), p.saved, "last persisted mapping must equal memory")
	assert.Equal(t, 50, p.saves)
}

func TestStore_Close(t *testing.T) {
	p := newFakePersister(nil)
	s := Open(context.Background(), p, 10000, zerolog.Nop())

	require.NoError(t, s.Close())
	assert.True(t, p.closed)
}

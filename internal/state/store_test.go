package state

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjects is an in-memory ObjectStore.
type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, ErrObjectNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeObjects) PutObject(_ context.Context, bucket, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeObjects) PutObjectIfAbsent(ctx context.Context, bucket, key string, data []byte) error {
	f.mu.Lock()
	if _, ok := f.objects[bucket+"/"+key]; ok {
		f.mu.Unlock()
		return fmt.Errorf("put %s: %w", key, ErrPreconditionFailed)
	}
	f.mu.Unlock()
	return f.PutObject(ctx, bucket, key, data)
}

func (f *fakeObjects) DeleteObject(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func backends(t *testing.T) map[string]func() Store {
	t.Helper()
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"sqlite": func() Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "state.db"))
			require.NoError(t, err)
			return s
		},
		"s3": func() Store { return NewS3Store(newFakeObjects(), "bucket", "nodeforge/state") },
	}
}

func sampleRecord(id string) *Record {
	return &Record{
		Stack:       "node",
		ID:          id,
		Kind:        "network",
		Region:      "fsn1",
		Fingerprint: "00000000000000ff",
		Properties:  map[string]any{"name": "node-network", "ip_range": "10.0.0.0/16"},
		Outputs:     map[string]string{"id": "42"},
		DependsOn:   []string{"a", "b"},
		UpdatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStore_PutLoadDelete(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			snap, err := s.Load(ctx, "node")
			require.NoError(t, err)
			assert.Empty(t, snap)

			require.NoError(t, s.Put(ctx, sampleRecord("network")))
			require.NoError(t, s.Put(ctx, sampleRecord("subnet")))
			other := sampleRecord("network")
			other.Stack = "other"
			require.NoError(t, s.Put(ctx, other))

			snap, err = s.Load(ctx, "node")
			require.NoError(t, err)
			assert.Equal(t, []string{"network", "subnet"}, snap.IDs())

			got := snap["network"]
			assert.Equal(t, "network", got.Kind)
			assert.Equal(t, "fsn1", got.Region)
			assert.Equal(t, "00000000000000ff", got.Fingerprint)
			assert.Equal(t, "10.0.0.0/16", got.Properties["ip_range"])
			assert.Equal(t, map[string]string{"id": "42"}, got.Outputs)
			assert.Equal(t, []string{"a", "b"}, got.DependsOn)
			assert.True(t, got.UpdatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

			updated := sampleRecord("network")
			updated.Fingerprint = "0000000000000100"
			require.NoError(t, s.Put(ctx, updated))
			snap, err = s.Load(ctx, "node")
			require.NoError(t, err)
			assert.Equal(t, "0000000000000100", snap["network"].Fingerprint)

			require.NoError(t, s.Delete(ctx, "node", "network"))
			require.NoError(t, s.Delete(ctx, "node", "missing"))
			snap, err = s.Load(ctx, "node")
			require.NoError(t, err)
			assert.Equal(t, []string{"subnet"}, snap.IDs())

			snap, err = s.Load(ctx, "other")
			require.NoError(t, err)
			assert.Equal(t, []string{"network"}, snap.IDs())
		})
	}
}

func TestStore_LoadReturnsCopies(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			require.NoError(t, s.Put(ctx, sampleRecord("network")))
			snap, err := s.Load(ctx, "node")
			require.NoError(t, err)
			snap["network"].Outputs["id"] = "mutated"

			again, err := s.Load(ctx, "node")
			require.NoError(t, err)
			assert.Equal(t, "42", again["network"].Outputs["id"])
		})
	}
}

func TestStore_RejectsIncompleteRecord(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			defer s.Close()
			assert.Error(t, s.Put(context.Background(), &Record{Stack: "node"}))
		})
	}
}

func TestStore_Lease(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			require.NoError(t, s.Lock(ctx, "node", "run-1"))
			require.NoError(t, s.Lock(ctx, "node", "run-1"), "re-entrant for the same holder")

			err := s.Lock(ctx, "node", "run-2")
			var locked *LockedError
			require.ErrorAs(t, err, &locked)
			assert.Equal(t, "node", locked.Stack)
			assert.Equal(t, "run-1", locked.Holder)
			assert.Contains(t, err.Error(), `stack "node" is locked by run-1`)

			require.NoError(t, s.Lock(ctx, "other", "run-2"), "leases are per stack")

			assert.ErrorIs(t, s.Unlock(ctx, "node", "run-2"), ErrNotLockHolder)
			require.NoError(t, s.Unlock(ctx, "node", "run-1"))
			require.NoError(t, s.Unlock(ctx, "node", "run-1"), "unlocking a free stack is a no-op")
			require.NoError(t, s.Lock(ctx, "node", "run-2"))
		})
	}
}

func TestStore_ForceUnlock(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			released, err := s.ForceUnlock(ctx, "node")
			require.NoError(t, err)
			assert.Nil(t, released, "a free stack has nothing to release")

			before := time.Now().Add(-time.Second)
			require.NoError(t, s.Lock(ctx, "node", "run-1"))
			require.NoError(t, s.Lock(ctx, "other", "run-1"))

			err = s.Lock(ctx, "node", "run-2")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "nodeforge unlock --force")

			released, err = s.ForceUnlock(ctx, "node")
			require.NoError(t, err)
			require.NotNil(t, released)
			assert.Equal(t, "run-1", released.Holder)
			assert.True(t, released.Since.After(before))

			require.NoError(t, s.Lock(ctx, "node", "run-2"), "released stack can be taken")
			var locked *LockedError
			require.ErrorAs(t, s.Lock(ctx, "other", "run-2"), &locked, "other stacks keep their lease")
			assert.Equal(t, "run-1", locked.Holder)
		})
	}
}

func TestS3Store_ForceUnlockCorruptLease(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	require.NoError(t, objects.PutObject(ctx, "bucket", "nodeforge/state/node.lock", []byte("{")))
	s := NewS3Store(objects, "bucket", "nodeforge/state")

	released, err := s.ForceUnlock(ctx, "node")
	require.NoError(t, err)
	assert.Equal(t, "unknown", released.Holder)
	require.NoError(t, s.Lock(ctx, "node", "run-1"))
}

func TestStore_ConcurrentPuts(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open()
			defer s.Close()

			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Put(ctx, sampleRecord(fmt.Sprintf("node-%02d", i))))
				}(i)
			}
			wg.Wait()

			snap, err := s.Load(ctx, "node")
			require.NoError(t, err)
			assert.Len(t, snap, 16)
		})
	}
}

func TestS3Store_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()

	first := NewS3Store(objects, "bucket", "prefix")
	require.NoError(t, first.Put(ctx, sampleRecord("network")))

	second := NewS3Store(objects, "bucket", "prefix")
	snap, err := second.Load(ctx, "node")
	require.NoError(t, err)
	require.Contains(t, snap, "network")
	assert.Equal(t, "node", snap["network"].Stack)

	_, ok := objects.objects["bucket/prefix/node.json"]
	assert.True(t, ok)
}

func TestS3Store_CorruptSnapshot(t *testing.T) {
	objects := newFakeObjects()
	objects.objects["bucket/prefix/node.json"] = []byte("{not json")

	_, err := NewS3Store(objects, "bucket", "prefix").Load(context.Background(), "node")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt")
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleRecord("network")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	snap, err := s.Load(ctx, "node")
	require.NoError(t, err)
	assert.Equal(t, []string{"network"}, snap.IDs())
}

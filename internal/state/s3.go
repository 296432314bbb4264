package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"
)

// ErrObjectNotFound and ErrPreconditionFailed are the object store
// conditions S3Store reacts to. Implementations wrap them.
var (
	ErrObjectNotFound     = errors.New("object not found")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// ObjectStore is the subset of an S3 client the S3 backend needs.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	// PutObjectIfAbsent fails with ErrPreconditionFailed when key exists.
	PutObjectIfAbsent(ctx context.Context, bucket, key string, data []byte) error
	DeleteObject(ctx context.Context, bucket, key string) error
}

type snapshotDocument struct {
	Version   int       `json:"version"`
	Stack     string    `json:"stack"`
	Records   Snapshot  `json:"records"`
	WrittenAt time.Time `json:"written_at"`
}

type lockDocument struct {
	Holder string    `json:"holder"`
	Since  time.Time `json:"since"`
}

// S3Store keeps one JSON snapshot object per stack next to a lock object.
type S3Store struct {
	objects ObjectStore
	bucket  string
	prefix  string

	mu    sync.Mutex
	cache map[string]Snapshot
}

// NewS3Store returns a store writing under prefix in bucket.
func NewS3Store(objects ObjectStore, bucket, prefix string) *S3Store {
	return &S3Store{
		objects: objects,
		bucket:  bucket,
		prefix:  prefix,
		cache:   make(map[string]Snapshot),
	}
}

func (s *S3Store) snapshotKey(stack string) string {
	return path.Join(s.prefix, stack+".json")
}

func (s *S3Store) lockKey(stack string) string {
	return path.Join(s.prefix, stack+".lock")
}

func (s *S3Store) Load(ctx context.Context, stack string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.fetch(ctx, stack)
	if err != nil {
		return nil, err
	}
	s.cache[stack] = snap
	out := make(Snapshot, len(snap))
	for id, rec := range snap {
		out[id] = cloneRecord(rec)
	}
	return out, nil
}

// fetch reads the snapshot object. The caller holds s.mu.
func (s *S3Store) fetch(ctx context.Context, stack string) (Snapshot, error) {
	data, err := s.objects.GetObject(ctx, s.bucket, s.snapshotKey(stack))
	if errors.Is(err, ErrObjectNotFound) {
		return make(Snapshot), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: failed to read snapshot for %s: %w", stack, err)
	}
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("state: snapshot for %s is corrupt: %w", stack, err)
	}
	if doc.Records == nil {
		doc.Records = make(Snapshot)
	}
	for id, rec := range doc.Records {
		rec.Stack, rec.ID = stack, id
	}
	return doc.Records, nil
}

// mutate applies fn to the cached snapshot and writes it back.
func (s *S3Store) mutate(ctx context.Context, stack string, fn func(Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.cache[stack]
	if !ok {
		var err error
		if snap, err = s.fetch(ctx, stack); err != nil {
			return err
		}
		s.cache[stack] = snap
	}
	fn(snap)

	data, err := json.MarshalIndent(snapshotDocument{Version: 1, Stack: stack, Records: snap, WrittenAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("state: failed to encode snapshot: %w", err)
	}
	if err := s.objects.PutObject(ctx, s.bucket, s.snapshotKey(stack), data); err != nil {
		return fmt.Errorf("state: failed to write snapshot for %s: %w", stack, err)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	c := cloneRecord(rec)
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	return s.mutate(ctx, rec.Stack, func(snap Snapshot) { snap[c.ID] = c })
}

func (s *S3Store) Delete(ctx context.Context, stack, id string) error {
	return s.mutate(ctx, stack, func(snap Snapshot) { delete(snap, id) })
}

func (s *S3Store) Lock(ctx context.Context, stack, holder string) error {
	data, err := json.Marshal(lockDocument{Holder: holder, Since: time.Now().UTC()})
	if err != nil {
		return err
	}
	err = s.objects.PutObjectIfAbsent(ctx, s.bucket, s.lockKey(stack), data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrPreconditionFailed) {
		return fmt.Errorf("state: lock %s failed: %w", stack, err)
	}

	current, readErr := s.readLock(ctx, stack)
	if readErr != nil {
		return &LockedError{Stack: stack, Holder: "unknown"}
	}
	if current.Holder == holder {
		return nil
	}
	return &LockedError{Stack: stack, Holder: current.Holder, Since: current.Since}
}

func (s *S3Store) readLock(ctx context.Context, stack string) (*lockDocument, error) {
	data, err := s.objects.GetObject(ctx, s.bucket, s.lockKey(stack))
	if err != nil {
		return nil, err
	}
	var doc lockDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *S3Store) Unlock(ctx context.Context, stack, holder string) error {
	current, err := s.readLock(ctx, stack)
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("state: unlock %s failed: %w", stack, err)
	}
	if current.Holder != holder {
		return fmt.Errorf("unlock %q: %w", stack, ErrNotLockHolder)
	}
	if err := s.objects.DeleteObject(ctx, s.bucket, s.lockKey(stack)); err != nil {
		return fmt.Errorf("state: unlock %s failed: %w", stack, err)
	}
	return nil
}

// ForceUnlock deletes the lock object. A lock object that cannot be
// decoded is still removed and reported with an unknown holder.
func (s *S3Store) ForceUnlock(ctx context.Context, stack string) (*Lease, error) {
	current, err := s.readLock(ctx, stack)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	released := &Lease{Holder: "unknown"}
	if err == nil {
		released = &Lease{Holder: current.Holder, Since: current.Since}
	}
	if err := s.objects.DeleteObject(ctx, s.bucket, s.lockKey(stack)); err != nil {
		return nil, fmt.Errorf("state: force unlock %s failed: %w", stack, err)
	}
	return released, nil
}

func (s *S3Store) Close() error { return nil }

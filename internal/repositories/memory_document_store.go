package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrRemoteUnavailable = errors.New("remote store unavailable")

// MemoryDocumentStore is an in-process DocumentStore with the same subtree
// semantics as PostgresDocumentStore. Failures can be injected for all
// calls or for paths under a prefix.
type MemoryDocumentStore struct {
	mu       sync.Mutex
	docs     map[string]json.RawMessage
	failAll  error
	failures map[string]error
	puts     int
	deletes  int
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs:     make(map[string]json.RawMessage),
		failures: make(map[string]error),
	}
}

// FailAll makes every call return err. A nil err restores normal behavior.
func (s *MemoryDocumentStore) FailAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = err
}

// FailPath makes writes and deletes at or under prefix return err. A nil err
// clears the failure.
func (s *MemoryDocumentStore) FailPath(prefix string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix = strings.Trim(prefix, "/")
	if err == nil {
		delete(s.failures, prefix)
		return
	}
	s.failures[prefix] = err
}

// Puts returns the number of successful Put calls.
func (s *MemoryDocumentStore) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *MemoryDocumentStore) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *MemoryDocumentStore) Put(ctx context.Context, path string, value any) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(ctx, path); err != nil {
		return err
	}

	s.removeSubtree(path)
	s.docs[path] = data
	s.puts++
	return nil
}

func (s *MemoryDocumentStore) Delete(ctx context.Context, path string) error {
	path, err := cleanPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(ctx, path); err != nil {
		return err
	}

	s.removeSubtree(path)
	s.deletes++
	return nil
}

func (s *MemoryDocumentStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	path, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.failAll != nil {
		return nil, s.failAll
	}

	matched := make(map[string]json.RawMessage)
	for p, v := range s.docs {
		if p == path || strings.HasPrefix(p, path+"/") {
			matched[p] = v
		}
	}
	return assembleTree(path, matched)
}

func (s *MemoryDocumentStore) failure(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failAll != nil {
		return s.failAll
	}
	for prefix, err := range s.failures {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return err
		}
	}
	return nil
}

func (s *MemoryDocumentStore) removeSubtree(path string) {
	for p := range s.docs {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(s.docs, p)
		}
	}
}

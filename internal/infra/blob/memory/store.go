// Package memory implements an in-memory artifact store for tests.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"printstack/internal/blob/core"
)

type entry struct {
	artifact core.Artifact
	data     []byte
}

// Store keeps artifacts in process memory.
type Store struct {
	mu      sync.RWMutex
	objects map[string]entry
}

// New returns an empty in-memory artifact store.
func New() *Store { return &Store{objects: make(map[string]entry)} }

func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put stores a new artifact; keys are create-only.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return core.Artifact{}, fmt.Errorf("artifact %s already exists", key)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Artifact{}, err
	}
	digest := sha256.Sum256(data)
	artifact := core.Artifact{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: opts.ContentType,
		Checksum:    hex.EncodeToString(digest[:]),
		Metadata:    copyMetadata(opts.Metadata),
		StoredAt:    time.Now().UTC(),
	}
	s.objects[key] = entry{artifact: artifact, data: data}
	return artifact, nil
}

// Get returns artifact metadata and a reader over a copy of its content.
func (s *Store) Get(_ context.Context, key string) (core.Artifact, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return core.Artifact{}, nil, fmt.Errorf("artifact %s not found", key)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	artifact := obj.artifact
	artifact.Metadata = copyMetadata(artifact.Metadata)
	return artifact, io.NopCloser(bytes.NewReader(data)), nil
}

// Head returns artifact metadata only.
func (s *Store) Head(_ context.Context, key string) (core.Artifact, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return core.Artifact{}, fmt.Errorf("artifact %s not found", key)
	}
	artifact := obj.artifact
	artifact.Metadata = copyMetadata(artifact.Metadata)
	return artifact, nil
}

// Delete removes the artifact, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	delete(s.objects, key)
	return ok, nil
}

// List returns all artifacts under prefix in key order.
func (s *Store) List(_ context.Context, prefix string) ([]core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Artifact, 0, len(s.objects))
	for k, v := range s.objects {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		artifact := v.artifact
		artifact.Metadata = copyMetadata(artifact.Metadata)
		out = append(out, artifact)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL is unsupported for the memory driver.
func (s *Store) PresignURL(_ context.Context, _ string, _ core.SignedURLOptions) (string, error) {
	return "", core.ErrUnsupported
}

func copyMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

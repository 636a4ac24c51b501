// Package fs implements the artifact store over a local directory tree.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"printstack/internal/blob/core"
)

const defaultRoot = "./backups"

// sidecarSuffix names the metadata file written next to each artifact.
const sidecarSuffix = ".meta.json"

// Store maps artifact keys to relative file paths under a root directory.
// Each artifact carries a JSON sidecar holding content type, checksum, and
// user metadata. Writes are create-only and land atomically via rename.
type Store struct {
	root string
}

// New returns a filesystem artifact store rooted at path, creating the
// directory if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = defaultRoot
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the backing directory.
func (s *Store) Root() string { return s.root }

// cleanKey rejects empty, absolute, and traversal keys.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty artifact key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("absolute artifact key %q", key)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(key, "..") {
		return "", fmt.Errorf("artifact key %q escapes root", key)
	}
	return clean, nil
}

func (s *Store) paths(key string) (dataPath, sidecarPath string, err error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(s.root, filepath.FromSlash(k))
	sidecarPath = dataPath + sidecarSuffix
	return dataPath, sidecarPath, nil
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Checksum    string            `json:"checksum"`
	Size        int64             `json:"size"`
	StoredAt    time.Time         `json:"stored_at"`
}

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Artifact, error) {
	dataPath, sidecarPath, err := s.paths(key)
	if err != nil {
		return core.Artifact{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return core.Artifact{}, fmt.Errorf("artifact %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return core.Artifact{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".pending-*")
	if err != nil {
		return core.Artifact{}, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	digest := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, digest), r)
	if err != nil {
		return core.Artifact{}, err
	}
	if err := tmp.Sync(); err != nil {
		return core.Artifact{}, err
	}
	checksum := hex.EncodeToString(digest.Sum(nil))
	now := time.Now().UTC()
	meta := sidecar{
		ContentType: opts.ContentType,
		Metadata:    copyMetadata(opts.Metadata),
		Checksum:    checksum,
		Size:        size,
		StoredAt:    now,
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return core.Artifact{}, err
	}
	if err := os.WriteFile(sidecarPath, raw, 0o644); err != nil {
		return core.Artifact{}, err
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		_ = os.Remove(sidecarPath)
		return core.Artifact{}, err
	}
	return s.artifact(key, meta), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Artifact, io.ReadCloser, error) {
	dataPath, sidecarPath, err := s.paths(key)
	if err != nil {
		return core.Artifact{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return core.Artifact{}, nil, err
	}
	meta, err := readSidecar(sidecarPath)
	if err != nil {
		_ = file.Close()
		return core.Artifact{}, nil, err
	}
	return s.artifact(key, meta), file, nil
}

func (s *Store) Head(_ context.Context, key string) (core.Artifact, error) {
	_, sidecarPath, err := s.paths(key)
	if err != nil {
		return core.Artifact{}, err
	}
	meta, err := readSidecar(sidecarPath)
	if err != nil {
		return core.Artifact{}, err
	}
	return s.artifact(key, meta), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	dataPath, sidecarPath, err := s.paths(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		return false, nil
	}
	if err := os.Remove(dataPath); err != nil {
		return false, err
	}
	_ = os.Remove(sidecarPath)
	return true, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Artifact, error) {
	var out []core.Artifact
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, sidecarSuffix) {
			return nil
		}
		meta, err := readSidecar(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.root, strings.TrimSuffix(path, sidecarSuffix))
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if prefix == "" || strings.HasPrefix(key, prefix) {
			out = append(out, s.artifact(key, meta))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PresignURL returns a pseudo URL for local development; no auth.
func (s *Store) PresignURL(_ context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && strings.ToUpper(opts.Method) != "GET" {
		return "", core.ErrUnsupported
	}
	return localURL(key), nil
}

func (s *Store) artifact(key string, meta sidecar) core.Artifact {
	return core.Artifact{
		Key:         key,
		Size:        meta.Size,
		ContentType: meta.ContentType,
		Checksum:    meta.Checksum,
		Metadata:    copyMetadata(meta.Metadata),
		StoredAt:    meta.StoredAt,
		URL:         localURL(key),
	}
}

func localURL(key string) string {
	return (&url.URL{Scheme: "http", Host: "local.artifacts", Path: "/" + key}).String()
}

func readSidecar(path string) (sidecar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, err
	}
	return meta, nil
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

// Prefero - Conversational Shopping Preference and Ranking Engine
// Copyright 2026 J. Calloway (jcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jcalloway/prefero

// snapshot.go - Versioned profile snapshots.
//
// Snapshots capture every stored profile in one gob-encoded, gzip-compressed
// file with a SHA-256 checksum, named profiles_v{N}.gob.gz. They serve as a
// portable backup alongside the live Badger store and enable rollback to an
// earlier state.

package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jcalloway/prefero/internal/prefs"
)

const (
	snapshotPrefix = "profiles_v"
	snapshotSuffix = ".gob.gz"
)

// SnapshotMetadata describes one stored snapshot.
type SnapshotMetadata struct {
	// Version is the snapshot version, monotonically increasing.
	Version int `json:"version"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`

	// ProfileCount is the number of profiles captured.
	ProfileCount int `json:"profile_count"`

	// Checksum is the SHA-256 of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// snapshotFile is the on-disk format.
type snapshotFile struct {
	Metadata       SnapshotMetadata
	CompressedData []byte
}

// SnapshotStore writes and reads profile snapshots under one directory.
type SnapshotStore struct {
	dir string

	mu     sync.Mutex
	latest int
}

// NewSnapshotStore creates the directory if needed and scans for existing
// snapshots.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	s := &SnapshotStore{dir: dir}

	versions, err := s.scanVersions()
	if err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	if len(versions) > 0 {
		s.latest = versions[len(versions)-1]
	}
	return s, nil
}

// scanVersions returns all snapshot versions on disk, ascending.
func (s *SnapshotStore) scanVersions() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		v, err := strconv.Atoi(name[len(snapshotPrefix) : len(name)-len(snapshotSuffix)])
		if err != nil || v < 1 {
			continue
		}
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

func (s *SnapshotStore) path(version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%d%s", snapshotPrefix, version, snapshotSuffix))
}

// Save writes a new snapshot containing the given profiles and returns its
// metadata.
func (s *SnapshotStore) Save(ctx context.Context, profiles []*prefs.UserProfile) (*SnapshotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(profiles); err != nil {
		return nil, fmt.Errorf("encode profiles: %w", err)
	}
	rawData := buf.Bytes()

	hash := sha256.Sum256(rawData)

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(rawData); err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("finalize compression: %w", err)
	}

	version := s.latest + 1
	meta := SnapshotMetadata{
		Version:      version,
		SavedAt:      time.Now(),
		ProfileCount: len(profiles),
		Checksum:     hex.EncodeToString(hash[:]),
		SizeBytes:    int64(compressed.Len()),
	}

	f, err := os.Create(s.path(version))
	if err != nil {
		return nil, fmt.Errorf("create snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	fileEnc := gob.NewEncoder(f)
	if err := fileEnc.Encode(snapshotFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		return nil, fmt.Errorf("write snapshot file: %w", err)
	}

	s.latest = version
	return &meta, nil
}

// Load reads a snapshot. Version 0 loads the latest.
func (s *SnapshotStore) Load(ctx context.Context, version int) ([]*prefs.UserProfile, *SnapshotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version == 0 {
		if s.latest == 0 {
			return nil, nil, fmt.Errorf("no snapshots found")
		}
		version = s.latest
	}

	f, err := os.Open(s.path(version))
	if err != nil {
		return nil, nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sf snapshotFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("read snapshot file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	rawData, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(rawData)
	if checksum := hex.EncodeToString(hash[:]); checksum != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", sf.Metadata.Checksum, checksum)
	}

	var profiles []*prefs.UserProfile
	if err := gob.NewDecoder(bytes.NewReader(rawData)).Decode(&profiles); err != nil {
		return nil, nil, fmt.Errorf("decode profiles: %w", err)
	}

	return profiles, &sf.Metadata, nil
}

// Latest returns the newest snapshot version, or false when none exist.
func (s *SnapshotStore) Latest() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.latest > 0
}

// List returns metadata for every stored snapshot, oldest first.
func (s *SnapshotStore) List(ctx context.Context) ([]SnapshotMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.scanVersions()
	if err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}

	metas := make([]SnapshotMetadata, 0, len(versions))
	for _, v := range versions {
		f, err := os.Open(s.path(v))
		if err != nil {
			continue
		}
		var sf snapshotFile
		err = gob.NewDecoder(f).Decode(&sf)
		_ = f.Close()
		if err != nil {
			continue
		}
		metas = append(metas, sf.Metadata)
	}
	return metas, nil
}

// Prune removes old snapshots, keeping the newest keep versions.
func (s *SnapshotStore) Prune(ctx context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 1 {
		keep = 1
	}

	versions, err := s.scanVersions()
	if err != nil {
		return fmt.Errorf("scan snapshots: %w", err)
	}
	if len(versions) <= keep {
		return nil
	}

	for _, v := range versions[:len(versions)-keep] {
		_ = os.Remove(s.path(v))
	}
	return nil
}

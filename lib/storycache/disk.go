// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

package storycache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/inscribe-foundation/inscribe/lib/codec"
	"github.com/inscribe-foundation/inscribe/lib/ledger"
	"github.com/inscribe-foundation/inscribe/lib/scroll"
)

// recordVersion is the on-disk record format version.
const recordVersion = 1

// record is the CBOR document stored per cached story. The manifest is
// kept in its JSON interchange form so the cache round-trips exactly
// what the ledger served; the text is LZ4 block-compressed when that
// actually shrinks it.
type record struct {
	Version    int                   `json:"version"`
	StoryRef   ledger.TransactionRef `json:"story_ref"`
	Manifest   []byte                `json:"manifest"`
	Text       []byte                `json:"text"`
	TextLen    int                   `json:"text_len"`
	Compressed bool                  `json:"compressed"`
	CachedAt   time.Time             `json:"cached_at"`
}

// DiskOption adjusts a disk cache.
type DiskOption func(*Disk)

// WithSealSecret encrypts records at rest with a key derived from the
// secret. A cache directory must be opened with the same secret it was
// written with; mixing sealed and unsealed records in one directory is
// not supported.
func WithSealSecret(secret []byte) DiskOption {
	return func(d *Disk) { d.sealSecret = append([]byte{}, secret...) }
}

// Disk is a persistent Cache. Records are sharded two hex characters
// deep by story ref and written atomically (temp file in the cache's
// tmp/ directory, fsync, rename), so a crash mid-write never leaves a
// truncated record behind.
type Disk struct {
	root       string
	sealSecret []byte
	sealer     *sealer
}

// NewDisk opens (creating if needed) a disk cache rooted at dir.
func NewDisk(dir string, opts ...DiskOption) (*Disk, error) {
	d := &Disk{root: dir}
	for _, opt := range opts {
		opt(d)
	}

	for _, sub := range []string{"stories", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	if d.sealSecret != nil {
		s, err := newSealer(d.sealSecret)
		if err != nil {
			return nil, err
		}
		d.sealer = s
	}
	return d, nil
}

// storyPath returns the sharded record path for a ref.
func (d *Disk) storyPath(ref ledger.TransactionRef) string {
	hexRef := ref.String()
	return filepath.Join(d.root, "stories", hexRef[:2], hexRef+".story")
}

// Get loads a cached story from disk.
func (d *Disk) Get(ref ledger.TransactionRef) (*Story, bool, error) {
	data, err := os.ReadFile(d.storyPath(ref))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache record: %w", err)
	}

	if d.sealer != nil {
		data, err = d.sealer.open(data)
		if err != nil {
			return nil, false, fmt.Errorf("unsealing cache record %s: %w", ref, err)
		}
	}

	var rec record
	if err := codec.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("decoding cache record %s: %w", ref, err)
	}
	if rec.Version != recordVersion {
		return nil, false, fmt.Errorf("cache record %s has version %d, want %d",
			ref, rec.Version, recordVersion)
	}
	if rec.StoryRef != ref {
		return nil, false, fmt.Errorf("cache record for %s claims story %s", ref, rec.StoryRef)
	}

	text := rec.Text
	if rec.Compressed {
		text = make([]byte, rec.TextLen)
		n, err := lz4.UncompressBlock(rec.Text, text)
		if err != nil {
			return nil, false, fmt.Errorf("decompressing cache record %s: %w", ref, err)
		}
		if n != rec.TextLen {
			return nil, false, fmt.Errorf("cache record %s decompressed to %d bytes, want %d",
				ref, n, rec.TextLen)
		}
	}

	manifest, err := scroll.UnmarshalManifest(rec.Manifest)
	if err != nil {
		return nil, false, fmt.Errorf("cache record %s: %w", ref, err)
	}

	return &Story{
		StoryRef: ref,
		Manifest: manifest,
		Text:     text,
		CachedAt: rec.CachedAt,
	}, true, nil
}

// Put writes a story record atomically.
func (d *Disk) Put(story *Story) error {
	manifestJSON, err := scroll.MarshalManifest(story.Manifest)
	if err != nil {
		return err
	}

	rec := record{
		Version:  recordVersion,
		StoryRef: story.StoryRef,
		Manifest: manifestJSON,
		TextLen:  len(story.Text),
		CachedAt: story.CachedAt,
	}
	rec.Text, rec.Compressed = compressText(story.Text)

	data, err := codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding cache record: %w", err)
	}
	if d.sealer != nil {
		data, err = d.sealer.seal(data)
		if err != nil {
			return fmt.Errorf("sealing cache record: %w", err)
		}
	}

	path := d.storyPath(story.StoryRef)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating cache shard: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(d.root, "tmp"), "story-*")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing cache record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("committing cache record: %w", err)
	}
	return nil
}

// Contains reports whether a record exists for ref.
func (d *Disk) Contains(ref ledger.TransactionRef) bool {
	_, err := os.Stat(d.storyPath(ref))
	return err == nil
}

// Stats walks the store and reports record count and on-disk bytes.
func (d *Disk) Stats() (Stats, error) {
	var stats Stats
	err := filepath.WalkDir(filepath.Join(d.root, "stories"), func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".story") {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		stats.TotalStories++
		stats.TotalSizeBytes += info.Size()
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("walking cache: %w", err)
	}
	return stats, nil
}

// compressText LZ4-compresses the text, falling back to the raw bytes
// when compression does not help (already-compact or tiny inputs).
func compressText(text []byte) (data []byte, compressed bool) {
	buf := make([]byte, lz4.CompressBlockBound(len(text)))
	var c lz4.Compressor
	n, err := c.CompressBlock(text, buf)
	if err != nil || n == 0 || n >= len(text) {
		return append([]byte(nil), text...), false
	}
	return buf[:n], true
}

// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package retrieve implements the reader side of the protocol: given a
// story's root transaction ref, it fetches the manifest, the hash-list
// chunks, and the content chunks, verifies every chunk against the
// hash list, and reassembles the plaintext (decipher, then inflate).
//
// Content chunks are fetched with bounded parallelism but revealed
// strictly in order: a snapshot only ever exposes the contiguous
// verified prefix, so a reader never sees chunk 7's text before chunk
// 6 has arrived and verified. Completed stories are written to the
// cache, making every later read a single cache hit.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inscribe-foundation/inscribe/lib/cipher"
	"github.com/inscribe-foundation/inscribe/lib/compress"
	"github.com/inscribe-foundation/inscribe/lib/glyph"
	"github.com/inscribe-foundation/inscribe/lib/ledger"
	"github.com/inscribe-foundation/inscribe/lib/scroll"
	"github.com/inscribe-foundation/inscribe/lib/storycache"
)

// Stage identifies where a retrieval is in its lifecycle.
type Stage int

const (
	StageIdle Stage = iota
	StageFetchingManifest
	StageFetchingHashList
	StageFetchingContent
	StageComplete
	StageErrored
	StageCancelled
)

// String returns the stage's wire/log name.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetchingManifest:
		return "fetching_manifest"
	case StageFetchingHashList:
		return "fetching_hashlist"
	case StageFetchingContent:
		return "fetching_content"
	case StageComplete:
		return "complete"
	case StageErrored:
		return "errored"
	case StageCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Progress is one retrieval progress snapshot. Loaded and Total count
// verified content chunks; the stage says which phase is running.
type Progress struct {
	Stage  Stage
	Loaded int
	Total  int
}

// Percent returns content completion as 0-100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Loaded) / float64(p.Total) * 100
}

// IntegrityError reports a content chunk whose digest did not match
// the hash list after refetching. The ledger's copy is immutable, so a
// persistent mismatch means the published data or the hash list is
// wrong; not something more retries can fix.
type IntegrityError struct {
	Index    uint32
	Expected glyph.Digest
	Got      glyph.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("chunk %d failed verification: digest %s, want %s",
		e.Index, e.Got, e.Expected)
}

// Defaults for fetch behavior.
const (
	DefaultParallelism = 4
	DefaultMaxAttempts = 4
	DefaultBackoffBase = 500 * time.Millisecond
)

// Option adjusts a Retriever.
type Option func(*Retriever)

// WithCache installs a story cache, checked before the ledger and
// written after every completed retrieval.
func WithCache(c storycache.Cache) Option {
	return func(r *Retriever) { r.cache = c }
}

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

// WithParallelism bounds concurrent chunk fetches per retrieval.
func WithParallelism(n int) Option {
	return func(r *Retriever) { r.parallelism = n }
}

// WithMaxAttempts bounds per-transaction fetch attempts, for both
// transient failures and integrity-mismatch refetches.
func WithMaxAttempts(attempts int) Option {
	return func(r *Retriever) { r.maxAttempts = attempts }
}

// WithBackoffBase sets the first retry delay; later retries double it,
// and rate limits double it again.
func WithBackoffBase(base time.Duration) Option {
	return func(r *Retriever) { r.backoffBase = base }
}

// WithCipher substitutes the obfuscation cipher (default: the shared
// protocol key).
func WithCipher(c *cipher.Cipher) Option {
	return func(r *Retriever) { r.cipher = c }
}

// WithHasher substitutes the content-addressing collaborator.
func WithHasher(h glyph.Hasher) Option {
	return func(r *Retriever) { r.hasher = h }
}

// Retriever fetches and reassembles stories from a ledger. Safe for
// concurrent use; concurrent retrievals of the same story ref share
// one in-flight Retrieval rather than fetching twice.
type Retriever struct {
	ledger      ledger.Ledger
	cache       storycache.Cache
	logger      *slog.Logger
	cipher      *cipher.Cipher
	hasher      glyph.Hasher
	parallelism int
	maxAttempts int
	backoffBase time.Duration

	mu       sync.Mutex
	inFlight map[ledger.TransactionRef]*Retrieval
}

// New creates a Retriever for the given ledger.
func New(l ledger.Ledger, opts ...Option) *Retriever {
	r := &Retriever{
		ledger:      l,
		parallelism: DefaultParallelism,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		inFlight:    make(map[ledger.TransactionRef]*Retrieval),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.cipher == nil {
		r.cipher = cipher.Default()
	}
	if r.hasher == nil {
		r.hasher = glyph.SHA256
	}
	return r
}

// Retrieve starts fetching the story at storyRef and returns a handle
// immediately; the work runs in a background goroutine until complete,
// errored, or cancelled. If a retrieval for the same ref is already in
// flight, its handle is returned instead of starting a second fetch.
// ctx bounds the whole retrieval; Cancel on the handle stops it early.
func (r *Retriever) Retrieve(ctx context.Context, storyRef ledger.TransactionRef) (*Retrieval, error) {
	if storyRef.IsZero() {
		return nil, fmt.Errorf("story ref is zero")
	}

	r.mu.Lock()
	if existing, ok := r.inFlight[storyRef]; ok {
		r.mu.Unlock()
		return existing, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	ret := &Retrieval{
		retriever: r,
		storyRef:  storyRef,
		stage:     StageIdle,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.inFlight[storyRef] = ret
	r.mu.Unlock()

	go ret.run(ctx)
	return ret, nil
}

// Retrieval is the handle for one in-progress or finished retrieval.
// All methods are safe for concurrent use.
type Retrieval struct {
	retriever *Retriever
	storyRef  ledger.TransactionRef
	cancel    context.CancelFunc
	done      chan struct{}

	mu        sync.Mutex
	stage     Stage
	manifest  *scroll.Manifest
	digests   []glyph.Digest
	chunks    [][]byte
	loaded    int
	revealed  int
	text      []byte
	err       error
	cancelled bool
	fromCache bool
}

// StoryRef returns the root transaction ref being retrieved.
func (t *Retrieval) StoryRef() ledger.TransactionRef {
	return t.storyRef
}

// Manifest returns the story manifest, or nil before it has been
// fetched and validated.
func (t *Retrieval) Manifest() *scroll.Manifest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.manifest
}

// Stage returns the current lifecycle stage.
func (t *Retrieval) Stage() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stage
}

// Err returns the terminal error, nil before the retrieval finishes or
// after it completes successfully.
func (t *Retrieval) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// FromCache reports whether the story was served from the cache.
func (t *Retrieval) FromCache() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fromCache
}

// Cancel stops the retrieval. Already-finished retrievals are
// unaffected.
func (t *Retrieval) Cancel() {
	t.mu.Lock()
	if t.stage != StageComplete && t.stage != StageErrored {
		t.cancelled = true
	}
	t.mu.Unlock()
	t.cancel()
}

// Wait blocks until the retrieval finishes or ctx expires, returning
// the full plaintext on success.
func (t *Retrieval) Wait(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return append([]byte(nil), t.text...), nil
}

// Snapshot returns the text readable so far, whether the retrieval is
// complete, and a progress report. Before completion the text is the
// plaintext that inflates cleanly from the contiguous verified chunk
// prefix; strictly in-order exposure, regardless of arrival order.
func (t *Retrieval) Snapshot() (text []byte, complete bool, progress Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	progress = Progress{
		Stage:  t.stage,
		Loaded: t.loaded,
		Total:  len(t.chunks),
	}

	if t.stage == StageComplete {
		return append([]byte(nil), t.text...), true, progress
	}
	if t.revealed == 0 {
		return nil, false, progress
	}

	var prefix []byte
	for _, chunk := range t.chunks[:t.revealed] {
		prefix = append(prefix, chunk...)
	}
	return compress.DecompressPrefix(t.retriever.cipher.Decrypt(prefix)), false, progress
}

// run drives the retrieval to a terminal stage.
func (t *Retrieval) run(ctx context.Context) {
	defer close(t.done)
	defer func() {
		t.retriever.mu.Lock()
		delete(t.retriever.inFlight, t.storyRef)
		t.retriever.mu.Unlock()
	}()

	if err := t.fetch(ctx); err != nil {
		t.mu.Lock()
		t.err = err
		if t.cancelled || errors.Is(err, context.Canceled) {
			t.stage = StageCancelled
		} else {
			t.stage = StageErrored
		}
		t.mu.Unlock()
		t.retriever.logger.Warn("retrieval failed",
			"story_ref", t.storyRef.String(),
			"stage", t.Stage().String(),
			"error", err,
		)
	}
}

func (t *Retrieval) fetch(ctx context.Context) error {
	r := t.retriever
	log := r.logger.With("story_ref", t.storyRef.String())

	// Cache first. Ledger content is immutable, so a hit is final.
	if r.cache != nil {
		story, ok, err := r.cache.Get(t.storyRef)
		if err != nil {
			log.Warn("cache read failed, falling back to ledger", "error", err)
		} else if ok {
			t.mu.Lock()
			t.manifest = story.Manifest
			t.chunks = make([][]byte, story.Manifest.TotalChunks)
			t.loaded = int(story.Manifest.TotalChunks)
			t.revealed = int(story.Manifest.TotalChunks)
			t.text = story.Text
			t.fromCache = true
			t.stage = StageComplete
			t.mu.Unlock()
			log.Debug("story served from cache")
			return nil
		}
	}

	// Manifest.
	t.setStage(StageFetchingManifest)
	rootPayload, err := t.readRetry(ctx, log, t.storyRef, "manifest root")
	if err != nil {
		return fmt.Errorf("fetching manifest: %w", err)
	}
	manifest, err := scroll.UnmarshalManifest(rootPayload)
	if err != nil {
		return fmt.Errorf("fetching manifest: %w", err)
	}

	t.mu.Lock()
	t.manifest = manifest
	t.chunks = make([][]byte, manifest.TotalChunks)
	t.mu.Unlock()

	// Hash list, fetched in parallel, then verified as a whole against
	// the manifest's root commitment before any content is trusted.
	t.setStage(StageFetchingHashList)
	hashListChunks := make([]glyph.HashListChunk, manifest.TotalHashListChunks)
	err = t.forEach(ctx, len(hashListChunks), func(i int) error {
		payload, err := t.readRetry(ctx, log, manifest.HashListChunks[i], "hash-list chunk")
		if err != nil {
			return fmt.Errorf("fetching hash-list chunk %d: %w", i, err)
		}
		envelope, err := scroll.DecodeEnvelope(payload, manifest.StoryID, scroll.KindHashList)
		if err != nil {
			return fmt.Errorf("hash-list chunk %d: %w", i, err)
		}
		if envelope.Index != uint32(i) {
			return fmt.Errorf("hash-list chunk %d: envelope claims index %d", i, envelope.Index)
		}
		hashListChunks[i] = glyph.HashListChunk{Index: envelope.Index, Digests: envelope.Digests}
		return nil
	})
	if err != nil {
		return err
	}

	if root := glyph.HashListRoot(r.hasher, hashListChunks); root != manifest.ManifestRootHash {
		return fmt.Errorf("hash list does not match manifest commitment: root %s, want %s",
			root, manifest.ManifestRootHash)
	}
	digests, err := glyph.Flatten(hashListChunks, manifest.TotalHashListChunks)
	if err != nil {
		return fmt.Errorf("assembling hash list: %w", err)
	}
	if uint32(len(digests)) != manifest.TotalChunks {
		return fmt.Errorf("hash list holds %d digests, manifest declares %d chunks",
			len(digests), manifest.TotalChunks)
	}
	t.mu.Lock()
	t.digests = digests
	t.mu.Unlock()

	// Content, fetched in parallel and verified per chunk; ordering is
	// restored at reveal time from the chunk indices.
	t.setStage(StageFetchingContent)
	err = t.forEach(ctx, int(manifest.TotalChunks), func(i int) error {
		return t.fetchChunk(ctx, log, manifest, uint32(i))
	})
	if err != nil {
		return err
	}

	// Reassemble: join, decipher, inflate.
	t.mu.Lock()
	glyphs := make([]glyph.Glyph, len(t.chunks))
	for i, payload := range t.chunks {
		glyphs[i] = glyph.Glyph{Index: uint32(i), Payload: payload}
	}
	t.mu.Unlock()

	ciphered, err := glyph.Join(glyphs, manifest.TotalChunks)
	if err != nil {
		return fmt.Errorf("reassembling story: %w", err)
	}
	text, err := compress.Decompress(r.cipher.Decrypt(ciphered))
	if err != nil {
		return fmt.Errorf("reassembling story: %w", err)
	}

	t.mu.Lock()
	t.text = text
	t.stage = StageComplete
	t.mu.Unlock()

	log.Info("story retrieved",
		"story_id", manifest.StoryID,
		"chunks", manifest.TotalChunks,
		"bytes", len(text),
	)

	// Cache the completed story. A write failure costs a future ledger
	// round-trip, nothing more.
	if r.cache != nil {
		err := r.cache.Put(&storycache.Story{
			StoryRef: t.storyRef,
			Manifest: manifest,
			Text:     text,
			CachedAt: time.Now().UTC(),
		})
		if err != nil {
			log.Warn("cache write failed", "error", err)
		}
	}
	return nil
}

// fetchChunk fetches and verifies one content chunk, refetching on
// digest mismatch up to the attempt bound.
func (t *Retrieval) fetchChunk(ctx context.Context, log *slog.Logger, manifest *scroll.Manifest, index uint32) error {
	r := t.retriever

	var lastMismatch *IntegrityError
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		payload, err := t.readRetry(ctx, log, manifest.Chunks[index], "glyph")
		if err != nil {
			return fmt.Errorf("fetching chunk %d: %w", index, err)
		}
		envelope, err := scroll.DecodeEnvelope(payload, manifest.StoryID, scroll.KindGlyph)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", index, err)
		}
		if envelope.Index != index {
			return fmt.Errorf("chunk %d: envelope claims index %d", index, envelope.Index)
		}

		got := r.hasher.Hash(envelope.Payload)
		want := t.digests[index]
		if got != want {
			lastMismatch = &IntegrityError{Index: index, Expected: want, Got: got}
			log.Warn("chunk digest mismatch, refetching",
				"index", index,
				"attempt", attempt+1,
			)
			continue
		}

		t.mu.Lock()
		if t.chunks[index] == nil {
			t.chunks[index] = envelope.Payload
			t.loaded++
			for t.revealed < len(t.chunks) && t.chunks[t.revealed] != nil {
				t.revealed++
			}
		}
		t.mu.Unlock()
		return nil
	}
	return lastMismatch
}

// readRetry reads one transaction with bounded exponential backoff on
// transient errors, mirroring the publisher's submission policy.
func (t *Retrieval) readRetry(ctx context.Context, log *slog.Logger, ref ledger.TransactionRef, what string) ([]byte, error) {
	r := t.retriever

	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := r.backoffBase << (attempt - 1)

			var rateLimitErr *ledger.RateLimitError
			if errors.As(lastErr, &rateLimitErr) {
				backoff *= 2
				if rateLimitErr.RetryAfter > backoff {
					backoff = rateLimitErr.RetryAfter
				}
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		payload, err := r.ledger.Read(ctx, ref)
		if err == nil {
			return payload, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !ledger.IsTransient(err) {
			return nil, err
		}

		log.Warn("transient read failure, retrying",
			"what", what,
			"ref", ref.String(),
			"attempt", attempt+1,
			"error", err,
		)
	}
	return nil, lastErr
}

// forEach runs fn(0..n-1) across the retriever's worker pool, stopping
// on the first error.
func (t *Retrieval) forEach(ctx context.Context, n int, fn func(i int) error) error {
	workers := t.retriever.parallelism
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	indices := make(chan int)
	errs := make(chan error, workers)
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if poolCtx.Err() != nil {
					return
				}
				if err := fn(i); err != nil {
					errs <- err
					cancel()
					return
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case indices <- i:
		case <-poolCtx.Done():
			break feed
		}
	}
	close(indices)
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
	}
	return ctx.Err()
}

func (t *Retrieval) setStage(stage Stage) {
	t.mu.Lock()
	t.stage = stage
	t.mu.Unlock()
}

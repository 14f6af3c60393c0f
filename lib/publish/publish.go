// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package publish drives a publication package onto the ledger: the
// three-phase submission of hash-list chunks, content chunks, and
// finally the manifest root. The root goes LAST because it embeds the
// confirmed refs of everything before it; its own ref is the story
// address handed to readers.
//
// Publishing is strictly sequential within a story; chunk indices and
// the root commitment assume one linear submission order, and the
// publisher enforces a single in-flight publish per story id.
// Independent stories publish concurrently.
//
// Individual submissions are retried with exponential backoff;
// exhausted retries degrade the publish to a partial result instead of
// discarding confirmed work. Confirmed refs live in the package, so
// re-invoking Publish with the same package resumes from the first
// unconfirmed item without duplicating transactions.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/inscribe-foundation/inscribe/lib/ledger"
	"github.com/inscribe-foundation/inscribe/lib/scroll"
)

// Stage identifies where a publication is in its lifecycle.
type Stage int

const (
	StagePreparing Stage = iota
	StageProcessing
	StagePublishingHashList
	StagePublishingContent
	StageCreatingRoot
	StageCompleted
	StageFailed
)

// String returns the stage's wire/log name.
func (s Stage) String() string {
	switch s {
	case StagePreparing:
		return "preparing"
	case StageProcessing:
		return "processing"
	case StagePublishingHashList:
		return "publishing_hashlist"
	case StagePublishingContent:
		return "publishing_content"
	case StageCreatingRoot:
		return "creating_root"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Progress is one publication progress snapshot. Consumers decide how
// to render it (discrete grid, percentage bar); the protocol just
// reports current/total per stage.
type Progress struct {
	StoryID string
	Stage   Stage
	Current int
	Total   int
}

// Percent returns completion of the current stage as 0-100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// Status is the terminal outcome of a publish call.
type Status int

const (
	// StatusCompleted means every transaction confirmed, including the
	// root. The package's RootRef is the story address.
	StatusCompleted Status = iota

	// StatusPartial means some submissions confirmed and at least one
	// did not. Confirmed refs are preserved in the package; a repeat
	// Publish resumes from the first unconfirmed item.
	StatusPartial

	// StatusFailed means a permanent error stopped the publish (bad
	// package, rejection). Confirmed refs are still preserved.
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Result reports the outcome of a publish call.
type Result struct {
	Status Status

	// StoryRef is the manifest root transaction ref; zero unless
	// Status is StatusCompleted.
	StoryRef ledger.TransactionRef

	// SuccessfulGlyphs counts confirmed content chunks; TotalGlyphs is
	// the package's content chunk count. Hash-list and root progress
	// is visible through the package itself.
	SuccessfulGlyphs int
	TotalGlyphs      int

	// Reason carries the error that degraded the publish; nil when
	// Status is StatusCompleted.
	Reason error
}

// ErrPublishInFlight is returned when a second publish is attempted
// for a story that already has one running.
var ErrPublishInFlight = errors.New("publish already in flight for story")

// Defaults for retry behavior.
const (
	DefaultMaxAttempts = 4
	DefaultBackoffBase = 500 * time.Millisecond
)

// Option adjusts a Publisher.
type Option func(*Publisher)

// WithLogger sets the structured logger (default slog.Default).
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMaxAttempts bounds per-submission attempts.
func WithMaxAttempts(attempts int) Option {
	return func(p *Publisher) { p.maxAttempts = attempts }
}

// WithBackoffBase sets the first retry delay; later retries double it,
// and rate limits double it again.
func WithBackoffBase(base time.Duration) Option {
	return func(p *Publisher) { p.backoffBase = base }
}

// WithProgress installs a progress callback. Called synchronously from
// the publishing goroutine; keep it cheap.
func WithProgress(fn func(Progress)) Option {
	return func(p *Publisher) { p.onProgress = fn }
}

// Publisher submits publication packages to a ledger.
type Publisher struct {
	ledger      ledger.Ledger
	logger      *slog.Logger
	maxAttempts int
	backoffBase time.Duration
	onProgress  func(Progress)

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Publisher for the given ledger.
func New(l ledger.Ledger, opts ...Option) *Publisher {
	p := &Publisher{
		ledger:      l,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		inFlight:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// PublishStory builds a package from text and publishes it: the full
// preparing → processing → publishing → completed lifecycle in one
// call. The returned package carries the confirmed refs (for resume on
// partial results) and the summary statistics.
func (p *Publisher) PublishStory(ctx context.Context, params scroll.StoryParams, text []byte, signer ledger.Signer, opts ...scroll.BuildOption) (*scroll.PublicationPackage, *Result, error) {
	p.emit(Progress{Stage: StagePreparing})

	if params.AuthorPublicKey == "" && signer != nil {
		params.AuthorPublicKey = signer.PublicKey()
	}

	p.emit(Progress{Stage: StageProcessing})
	pkg, err := scroll.BuildPackage(params, text, p.ledger.MaxPayload(), opts...)
	if err != nil {
		p.emit(Progress{Stage: StageFailed})
		return nil, nil, err
	}

	result, err := p.Publish(ctx, pkg, signer)
	return pkg, result, err
}

// Publish submits the package: hash-list chunks in index order, then
// content chunks in index order, then the manifest root. Already
// confirmed items (non-zero refs in the package) are skipped, which is
// what makes a partial publish resumable. Returns an error only for
// caller mistakes (duplicate in-flight publish) and context
// cancellation; ledger trouble is reported through the Result.
func (p *Publisher) Publish(ctx context.Context, pkg *scroll.PublicationPackage, signer ledger.Signer) (*Result, error) {
	storyID := pkg.Manifest.StoryID

	if err := p.acquire(storyID); err != nil {
		return nil, err
	}
	defer p.release(storyID)

	if !pkg.RootRef.IsZero() {
		// Fully published already.
		return p.completedResult(pkg), nil
	}

	log := p.logger.With("story_id", storyID)

	// Phase 1: hash-list chunks. Every one must confirm before any
	// content is submitted; readers verify content against a complete
	// hash list.
	totalHashList := len(pkg.HashListChunks)
	for i, chunk := range pkg.HashListChunks {
		if !pkg.HashListRefs[i].IsZero() {
			continue
		}
		p.emit(Progress{StoryID: storyID, Stage: StagePublishingHashList, Current: i, Total: totalHashList})

		payload, err := scroll.EncodeHashListEnvelope(storyID, chunk)
		if err != nil {
			return p.degradedResult(pkg, StatusFailed, err), nil
		}

		ref, err := p.submitRetry(ctx, log, payload, signer, "hash-list chunk", i)
		if err != nil {
			return p.submissionResult(ctx, pkg, err)
		}
		pkg.HashListRefs[i] = ref
	}
	p.emit(Progress{StoryID: storyID, Stage: StagePublishingHashList, Current: totalHashList, Total: totalHashList})

	// Phase 2: content chunks in index order.
	totalGlyphs := len(pkg.Glyphs)
	for i, g := range pkg.Glyphs {
		if !pkg.GlyphRefs[i].IsZero() {
			continue
		}
		p.emit(Progress{StoryID: storyID, Stage: StagePublishingContent, Current: i, Total: totalGlyphs})

		payload, err := scroll.EncodeGlyphEnvelope(storyID, g)
		if err != nil {
			return p.degradedResult(pkg, StatusFailed, err), nil
		}

		ref, err := p.submitRetry(ctx, log, payload, signer, "glyph", i)
		if err != nil {
			return p.submissionResult(ctx, pkg, err)
		}
		pkg.GlyphRefs[i] = ref
	}
	p.emit(Progress{StoryID: storyID, Stage: StagePublishingContent, Current: totalGlyphs, Total: totalGlyphs})

	// Phase 3: the root, referencing everything confirmed above.
	p.emit(Progress{StoryID: storyID, Stage: StageCreatingRoot, Current: 0, Total: 1})

	manifest, err := pkg.FilledManifest()
	if err != nil {
		return p.degradedResult(pkg, StatusFailed, err), nil
	}
	payload, err := scroll.MarshalManifest(manifest)
	if err != nil {
		return p.degradedResult(pkg, StatusFailed, err), nil
	}

	rootRef, err := p.submitRetry(ctx, log, payload, signer, "manifest root", 0)
	if err != nil {
		return p.submissionResult(ctx, pkg, err)
	}
	pkg.RootRef = rootRef

	p.emit(Progress{StoryID: storyID, Stage: StageCompleted, Current: totalGlyphs, Total: totalGlyphs})
	log.Info("story published",
		"story_ref", rootRef.String(),
		"glyphs", totalGlyphs,
		"hash_list_chunks", totalHashList,
	)
	return p.completedResult(pkg), nil
}

// submitRetry submits one payload with bounded exponential backoff.
// Rate limits wait twice the schedule (or the advisory RetryAfter when
// longer). Permanent errors and exhausted retries return the last
// error; context cancellation returns ctx.Err.
func (p *Publisher) submitRetry(ctx context.Context, log *slog.Logger, payload []byte, signer ledger.Signer, what string, index int) (ledger.TransactionRef, error) {
	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := p.backoffBase << (attempt - 1)

			var rateLimitErr *ledger.RateLimitError
			if errors.As(lastErr, &rateLimitErr) {
				backoff *= 2
				if rateLimitErr.RetryAfter > backoff {
					backoff = rateLimitErr.RetryAfter
				}
			}

			select {
			case <-ctx.Done():
				return ledger.TransactionRef{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		ref, err := p.ledger.Submit(ctx, payload, signer)
		if err == nil {
			return ref, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ledger.TransactionRef{}, ctx.Err()
		}
		if !ledger.IsTransient(err) {
			return ledger.TransactionRef{}, err
		}

		log.Warn("transient submission failure, retrying",
			"what", what,
			"index", index,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return ledger.TransactionRef{}, lastErr
}

// submissionResult classifies a submission failure into a Result,
// passing context cancellation through as an error.
func (p *Publisher) submissionResult(ctx context.Context, pkg *scroll.PublicationPackage, err error) (*Result, error) {
	if ctx.Err() != nil {
		return p.degradedResult(pkg, StatusPartial, ctx.Err()), ctx.Err()
	}
	if ledger.IsTransient(err) {
		// Retries exhausted on a transient error: resumable.
		return p.degradedResult(pkg, StatusPartial, err), nil
	}
	return p.degradedResult(pkg, StatusFailed, err), nil
}

func (p *Publisher) completedResult(pkg *scroll.PublicationPackage) *Result {
	return &Result{
		Status:           StatusCompleted,
		StoryRef:         pkg.RootRef,
		SuccessfulGlyphs: pkg.ConfirmedGlyphs(),
		TotalGlyphs:      len(pkg.Glyphs),
	}
}

func (p *Publisher) degradedResult(pkg *scroll.PublicationPackage, status Status, reason error) *Result {
	p.emit(Progress{StoryID: pkg.Manifest.StoryID, Stage: StageFailed})
	p.logger.Warn("publish degraded",
		"story_id", pkg.Manifest.StoryID,
		"status", status.String(),
		"confirmed_glyphs", pkg.ConfirmedGlyphs(),
		"total_glyphs", len(pkg.Glyphs),
		"error", reason,
	)
	return &Result{
		Status:           status,
		SuccessfulGlyphs: pkg.ConfirmedGlyphs(),
		TotalGlyphs:      len(pkg.Glyphs),
		Reason:           reason,
	}
}

// acquire enforces the single-flight-per-story invariant.
func (p *Publisher) acquire(storyID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.inFlight[storyID]; exists {
		return fmt.Errorf("%w: %s", ErrPublishInFlight, storyID)
	}
	p.inFlight[storyID] = struct{}{}
	return nil
}

func (p *Publisher) release(storyID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, storyID)
}

// emit delivers a progress snapshot if a callback is installed.
func (p *Publisher) emit(progress Progress) {
	if p.onProgress != nil {
		p.onProgress(progress)
	}
}

// Copyright 2026 The Inscribe Authors
// SPDX-License-Identifier: Apache-2.0

// inscribe is the command-line interface to the publication protocol:
// publish stories to a ledger, read them back progressively, and
// inspect the local story cache. The ledger backend is the file ledger
// (one transaction per file under --ledger), which makes every
// published transaction inspectable with ordinary shell tools.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/inscribe-foundation/inscribe/lib/ledger"
	"github.com/inscribe-foundation/inscribe/lib/publish"
	"github.com/inscribe-foundation/inscribe/lib/retrieve"
	"github.com/inscribe-foundation/inscribe/lib/scroll"
	"github.com/inscribe-foundation/inscribe/lib/storycache"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	switch os.Args[1] {
	case "keygen":
		return runKeygen(os.Args[2:])
	case "publish":
		return runPublish(os.Args[2:])
	case "read":
		return runRead(os.Args[2:])
	case "cache-stats":
		return runCacheStats(os.Args[2:])
	case "version":
		fmt.Printf("inscribe %s\n", version)
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", os.Args[1])
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: inscribe <subcommand> [flags]

Subcommands:
  keygen       Create (or show) the signing identity
  publish      Publish a story to the ledger
  read         Retrieve a story by its root transaction ref
  cache-stats  Show local story cache statistics
  version      Print version information

Run 'inscribe <subcommand> --help' for subcommand flags.
`)
}

// setupLogging installs a text slog handler at the requested level.
func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// defaultDataDir returns the base directory for ledger, cache, and
// identity files.
func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "inscribe")
	}
	return ".inscribe"
}

func runKeygen(args []string) error {
	flags := pflag.NewFlagSet("keygen", pflag.ExitOnError)
	identity := flags.String("identity", filepath.Join(defaultDataDir(), "identity.seed"), "path to the signer seed file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(*identity), 0o700); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}
	signer, err := ledger.LoadSigner(*identity)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n", signer.PublicKey())
	return nil
}

func runPublish(args []string) error {
	flags := pflag.NewFlagSet("publish", pflag.ExitOnError)
	var (
		ledgerDir = flags.String("ledger", filepath.Join(defaultDataDir(), "ledger"), "ledger root directory")
		identity  = flags.String("identity", filepath.Join(defaultDataDir(), "identity.seed"), "path to the signer seed file")
		title     = flags.String("title", "", "story title (required)")
		author    = flags.String("author", "", "author display name")
		fromFile  = flags.String("from-file", "", "read story text from file instead of stdin")
		verbose   = flags.BoolP("verbose", "v", false, "debug logging")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	setupLogging(*verbose)

	if *title == "" {
		flags.Usage()
		return fmt.Errorf("--title is required")
	}

	var reader io.Reader = os.Stdin
	if *fromFile != "" {
		file, err := os.Open(*fromFile)
		if err != nil {
			return fmt.Errorf("opening story file: %w", err)
		}
		defer file.Close()
		reader = file
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("reading story text: %w", err)
	}

	backend, err := ledger.OpenFile(*ledgerDir, 0)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(*identity), 0o700); err != nil {
		return fmt.Errorf("creating identity directory: %w", err)
	}
	signer, err := ledger.LoadSigner(*identity)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher := publish.New(backend, publish.WithProgress(func(p publish.Progress) {
		if p.Total > 0 {
			fmt.Fprintf(os.Stderr, "\r%-20s %d/%d (%.0f%%)", p.Stage, p.Current, p.Total, p.Percent())
		} else {
			fmt.Fprintf(os.Stderr, "\r%-20s", p.Stage)
		}
	}))

	pkg, result, err := publisher.PublishStory(ctx, scroll.StoryParams{
		Title:  *title,
		Author: *author,
	}, text, signer)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	switch result.Status {
	case publish.StatusCompleted:
		fmt.Printf("story ref: %s\n", result.StoryRef)
		fmt.Printf("story id:  %s\n", pkg.Manifest.StoryID)
		fmt.Printf("chunks:    %d content, %d hash-list\n",
			pkg.Summary.TotalChunks, pkg.Summary.TotalHashListChunks)
		fmt.Printf("size:      %d bytes published (%.1f%% saved by compression)\n",
			pkg.Summary.PublishedBytes, pkg.Summary.Compression.PercentSaved())
		return nil
	default:
		return fmt.Errorf("publish %s: %d/%d chunks confirmed: %v",
			result.Status, result.SuccessfulGlyphs, result.TotalGlyphs, result.Reason)
	}
}

func runRead(args []string) error {
	flags := pflag.NewFlagSet("read", pflag.ExitOnError)
	var (
		ledgerDir = flags.String("ledger", filepath.Join(defaultDataDir(), "ledger"), "ledger root directory")
		cacheDir  = flags.String("cache", filepath.Join(defaultDataDir(), "cache"), "story cache directory (empty to disable)")
		verbose   = flags.BoolP("verbose", "v", false, "debug logging")
	)
	if err := flags.Parse(args); err != nil {
		return err
	}
	setupLogging(*verbose)

	if flags.NArg() != 1 {
		flags.Usage()
		return fmt.Errorf("exactly one story ref argument required")
	}
	storyRef, err := ledger.ParseRef(flags.Arg(0))
	if err != nil {
		return err
	}

	backend, err := ledger.OpenFile(*ledgerDir, 0)
	if err != nil {
		return err
	}

	opts := []retrieve.Option{}
	if *cacheDir != "" {
		cache, err := storycache.NewDisk(*cacheDir)
		if err != nil {
			return err
		}
		opts = append(opts, retrieve.WithCache(cache))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	retrieval, err := retrieve.New(backend, opts...).Retrieve(ctx, storyRef)
	if err != nil {
		return err
	}
	text, err := retrieval.Wait(ctx)
	if err != nil {
		return err
	}

	manifest := retrieval.Manifest()
	fmt.Fprintf(os.Stderr, "%s", manifest.Title)
	if manifest.Author != "" {
		fmt.Fprintf(os.Stderr, " by %s", manifest.Author)
	}
	if retrieval.FromCache() {
		fmt.Fprintf(os.Stderr, " (cached)")
	}
	fmt.Fprintln(os.Stderr)

	_, err = os.Stdout.Write(text)
	return err
}

func runCacheStats(args []string) error {
	flags := pflag.NewFlagSet("cache-stats", pflag.ExitOnError)
	cacheDir := flags.String("cache", filepath.Join(defaultDataDir(), "cache"), "story cache directory")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cache, err := storycache.NewDisk(*cacheDir)
	if err != nil {
		return err
	}
	stats, err := cache.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("stories: %d\n", stats.TotalStories)
	fmt.Printf("bytes:   %d\n", stats.TotalSizeBytes)
	return nil
}

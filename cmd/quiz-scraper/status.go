package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sriram-PR/quiz-scraper/pkg/resolve"
	"github.com/Sriram-PR/quiz-scraper/pkg/storage"
)

func discardEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// doStatus prints a summary of the saved progress for the configured target.
// Returns exit code (0 = success, 1 = error).
func doStatus(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadValidConfig(configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	progress := storage.NewProgressStore(appCfg.StateDir, resolve.ProgressStem(appCfg.Target.Title, appCfg.Target.SeedURL),
		appCfg.Target.SeedURL, discardEntry())
	state, err := progress.Peek()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if state == nil {
		fmt.Fprintf(stdout, "No saved progress for '%s' (%s)\n", appCfg.Target.Title, progress.Path())
		return 0
	}

	fmt.Fprintf(stdout, "Progress for '%s'\n", state.Title)
	fmt.Fprintf(stdout, "  File:       %s\n", progress.Path())
	fmt.Fprintf(stdout, "  Run ID:     %s\n", state.RunID)
	fmt.Fprintf(stdout, "  Seed:       %s\n", state.SeedURL)
	fmt.Fprintf(stdout, "  Updated:    %s\n", state.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(stdout, "  Completed:  %d topic(s)\n", len(state.CompletedURLs))
	fmt.Fprintf(stdout, "  Buffer:     %d bytes\n", len(state.HTMLBuffer))
	fmt.Fprintf(stdout, "  Failed:     %d topic(s)\n", len(state.Failed))
	for _, f := range state.Failed {
		fmt.Fprintf(stdout, "    - %s (%s) after %d attempt(s): [%s] %s\n", f.Title, f.URL, f.Attempts, f.ErrorType, f.Error)
	}
	if state.SeedURL != appCfg.Target.SeedURL {
		fmt.Fprintf(stdout, "  Note: saved seed differs from the configured seed %s\n", appCfg.Target.SeedURL)
	}
	return 0
}

func newCleanCmd(g *globalFlags, stdout, stderr io.Writer, exitCode *int) *cobra.Command {
	var withCache bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete saved progress, and optionally the image cache",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			*exitCode = doClean(g.configFile, withCache, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&withCache, "cache", false, "Also remove the cross-run image cache")
	return cmd
}

// doClean removes the progress file and, when withCache is set, the image cache.
// Returns exit code (0 = success, 1 = error).
func doClean(configPath string, withCache bool, stdout, stderr io.Writer) int {
	appCfg, err := loadValidConfig(configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	progress := storage.NewProgressStore(appCfg.StateDir, resolve.ProgressStem(appCfg.Target.Title, appCfg.Target.SeedURL),
		appCfg.Target.SeedURL, discardEntry())
	existed := progress.Exists()
	if err := progress.Delete(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if existed {
		fmt.Fprintf(stdout, "Removed %s\n", progress.Path())
	} else {
		fmt.Fprintf(stdout, "No progress file at %s\n", progress.Path())
	}

	if withCache {
		if err := storage.RemoveImageCache(appCfg.StateDir); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Removed image cache %s\n", storage.ImageCachePath(appCfg.StateDir))
	}
	return 0
}

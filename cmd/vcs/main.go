// cmd/vcs/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"vcs/internal/api"
	"vcs/internal/config"
	"vcs/internal/diff"
	"vcs/internal/logging"
	"vcs/internal/merge"
	"vcs/internal/repo"
	"vcs/internal/tracker"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	configPath string
	repoRoot   string
)

var rootCmd = &cobra.Command{
	Use:   "vcs",
	Short: "vcs is a minimal content-addressed version control system",
	Long: `vcs stores file content by SHA-256 hash, records immutable snapshots of
tracked files, shows line-level diffs and scans two snapshots for conflicts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.FromEnv()
}

func workDir() (string, error) {
	if repoRoot != "" {
		return repoRoot, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return dir, nil
}

// rootDir finds the repository containing the working directory.
func rootDir() (string, error) {
	dir, err := workDir()
	if err != nil {
		return "", err
	}
	return repo.FindRoot(dir)
}

func openRepo() (*repo.Repository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	// The CLI exits after each command; there is nothing to watch.
	cfg.Tracker.Watch = false

	dir, err := rootDir()
	if err != nil {
		return nil, err
	}
	return repo.Open(dir, cfg, logger)
}

// absPaths resolves command-line paths against the working directory so
// they can be used from anywhere inside the repository.
func absPaths(paths []string) ([]string, error) {
	dir, err := workDir()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(dir, p)
		}
	}
	return out, nil
}

// resolveVersionID accepts a full id or a unique prefix of one.
func resolveVersionID(r *repo.Repository, arg string) (string, error) {
	if v := r.Versions.Get(arg); v != nil {
		return v.ID, nil
	}

	var matches []string
	for _, v := range r.Versions.History() {
		if strings.HasPrefix(v.ID, arg) {
			matches = append(matches, v.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("unknown version: %s", arg)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous version prefix %s matches %d versions", arg, len(matches))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVarP(&repoRoot, "repo", "C", "", "repository root (defaults to the current directory)")

	var initCmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize a new repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := workDir()
			if err != nil {
				return err
			}

			if err := repo.Init(dir); err != nil {
				return fmt.Errorf("initializing repository: %w", err)
			}

			fmt.Println("Initialized empty repository in", dir)
			return nil
		},
	}

	var trackCmd = &cobra.Command{
		Use:   "track [paths...]",
		Short: "Start tracking files",
		Long:  `Stores the current content of the given files and records them as tracked. Directories are walked; use '.' for everything.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			if err := r.Tracker.Track(paths); err != nil {
				return fmt.Errorf("tracking files: %w", err)
			}

			fmt.Println("Files tracked successfully")
			return nil
		},
	}

	var untrackCmd = &cobra.Command{
		Use:   "untrack [paths...]",
		Short: "Stop tracking files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			paths, err := absPaths(args)
			if err != nil {
				return err
			}
			if err := r.Tracker.Untrack(paths); err != nil {
				return fmt.Errorf("untracking files: %w", err)
			}

			fmt.Println("Files untracked successfully")
			return nil
		},
	}

	var statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			states, err := r.Tracker.Status()
			if err != nil {
				return fmt.Errorf("getting status: %w", err)
			}

			green := color.New(color.FgGreen).SprintFunc()
			red := color.New(color.FgRed).SprintFunc()
			yellow := color.New(color.FgYellow).SprintFunc()
			blue := color.New(color.FgBlue).SprintFunc()
			magenta := color.New(color.FgMagenta).SprintFunc()

			if current := r.Versions.Current(); current != nil {
				fmt.Printf("On version %s: %s\n", shortID(current.ID), current.Message)
			}
			if len(states) == 0 {
				fmt.Println("Nothing tracked")
				return nil
			}

			fmt.Printf("\nFiles in working tree:\n\n")
			for _, s := range states {
				switch s.Status {
				case tracker.StatusTracked:
					fmt.Printf("\t%s %s\n", green("✓"), s.Path)
				case tracker.StatusModified:
					fmt.Printf("\t%s %s\n", yellow("M"), s.Path)
				case tracker.StatusDeleted:
					fmt.Printf("\t%s %s\n", red("D"), s.Path)
				case tracker.StatusConflicted:
					fmt.Printf("\t%s %s\n", magenta("C"), s.Path)
				default:
					fmt.Printf("\t%s %s\n", blue("?"), s.Path)
				}
			}
			return nil
		},
	}

	var commitCmd = &cobra.Command{
		Use:   "commit",
		Short: "Record a new version of all tracked files",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			v, err := r.Commit(message)
			if err != nil {
				return fmt.Errorf("committing: %w", err)
			}

			fmt.Printf("Created version %s with %d files\n", v.ID, len(v.FileHashes))
			return nil
		},
	}
	commitCmd.Flags().StringP("message", "m", "", "version message")
	commitCmd.MarkFlagRequired("message")

	var logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show version history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			author, _ := cmd.Flags().GetString("author")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			history := r.Versions.History()
			if author != "" {
				history = r.Versions.ByAuthor(author)
			}
			if len(history) == 0 {
				fmt.Println("No versions found")
				return nil
			}

			yellow := color.New(color.FgYellow).SprintFunc()
			for i := len(history) - 1; i >= 0; i-- {
				v := history[i]
				fmt.Printf("%s  %s  %-12s  %s\n",
					yellow(shortID(v.ID)),
					v.Timestamp.Local().Format(time.RFC3339),
					v.Author,
					v.Message,
				)
			}
			return nil
		},
	}
	logCmd.Flags().String("author", "", "only show versions by this author")

	var diffCmd = &cobra.Command{
		Use:   "diff [from to]",
		Short: "Show line changes",
		Long: `With two version ids, diffs the snapshots. With --file, diffs the stored
content of a tracked file against the working copy. With neither, diffs every
modified tracked file.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("diff takes either no arguments or two version ids")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			if len(args) == 2 {
				from, err := resolveVersionID(r, args[0])
				if err != nil {
					return err
				}
				to, err := resolveVersionID(r, args[1])
				if err != nil {
					return err
				}
				result, err := r.Diff.DiffVersions(from, to)
				if err != nil {
					return fmt.Errorf("diffing versions: %w", err)
				}
				printColoredDiff(result)
				return nil
			}

			paths, err := absPaths([]string{file})
			if err != nil {
				return err
			}
			if file == "" {
				states, err := r.Tracker.Status()
				if err != nil {
					return fmt.Errorf("getting status: %w", err)
				}
				paths = paths[:0]
				for _, s := range states {
					if s.Status == tracker.StatusModified || s.Status == tracker.StatusConflicted {
						paths = append(paths, s.Path)
					}
				}
			}

			if len(paths) == 0 {
				fmt.Println("No changes")
				return nil
			}
			for _, p := range paths {
				if p, err = r.Tracker.Normalize(p); err != nil {
					return err
				}
				result, err := r.Diff.DiffWorkingFile(p)
				if err != nil {
					return fmt.Errorf("diffing %s: %w", p, err)
				}
				printColoredDiff(result)
			}
			return nil
		},
	}
	diffCmd.Flags().String("file", "", "diff a tracked file against its working copy")

	var mergeCmd = &cobra.Command{
		Use:   "merge <source> <target>",
		Short: "Scan two versions for conflicts and optionally resolve them",
		Long: `Compares every file of the source version with the target version.
Blocks that are similar enough are accepted without writing anything. Real
conflicts are listed; with --strategy they are resolved into the working tree.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			strategyFlag, _ := cmd.Flags().GetString("strategy")

			var strategy merge.Strategy
			if strategyFlag != "" {
				var err error
				strategy, err = merge.ParseStrategy(strategyFlag)
				if err != nil {
					return err
				}
				if strategy == merge.Custom {
					return fmt.Errorf("custom resolutions are only available through the HTTP API")
				}
			}

			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			source, err := resolveVersionID(r, args[0])
			if err != nil {
				return err
			}
			target, err := resolveVersionID(r, args[1])
			if err != nil {
				return err
			}

			report, err := r.MergeVersions(source, target)
			if err != nil {
				return fmt.Errorf("merging: %w", err)
			}
			printMergeReport(report)

			if report.Clean() || strategy == "" {
				return nil
			}

			for _, c := range r.Merge.Conflicts() {
				hash, err := r.Merge.ResolveConflict(c.FilePath, merge.Resolution{FilePath: c.FilePath, Strategy: strategy})
				if err != nil {
					return fmt.Errorf("resolving %s: %w", c.FilePath, err)
				}
				fmt.Printf("Resolved %s (%s) -> %s\n", c.FilePath, strategy, shortID(hash))
			}
			return nil
		},
	}
	mergeCmd.Flags().String("strategy", "", "resolve conflicts with keep-source or keep-target")

	var revertCmd = &cobra.Command{
		Use:   "revert <version>",
		Short: "Restore the working files of a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openRepo()
			if err != nil {
				return err
			}
			defer r.Close()

			id, err := resolveVersionID(r, args[0])
			if err != nil {
				return err
			}
			if err := r.Revert(id); err != nil {
				return fmt.Errorf("reverting: %w", err)
			}

			fmt.Printf("Working tree restored to %s\n", shortID(id))
			return nil
		},
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the repository over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				host, port, err := splitAddr(addr)
				if err != nil {
					return err
				}
				cfg.Server.Host, cfg.Server.Port = host, port
			}

			svcLogger, err := logging.NewLogger(cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer svcLogger.Sync()

			dir, err := rootDir()
			if err != nil {
				return err
			}
			r, err := repo.Open(dir, cfg, svcLogger.Logger)
			if err != nil {
				return err
			}
			defer r.Close()

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := api.NewServer(addr, api.Services{
				Versions: r.Versions,
				Objects:  r.Objects,
				Diff:     r.Diff,
				Merge:    r.Merge,
			}, svcLogger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			svcLogger.Info("starting server", zap.String("address", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}
	serveCmd.Flags().String("addr", "", "listen address host:port (overrides config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(untrackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(revertCmd)
	rootCmd.AddCommand(serveCmd)
}

func printColoredDiff(result *diff.Result) {
	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	modified := color.New(color.FgYellow)
	header := color.New(color.FgCyan)

	for _, line := range strings.Split(result.Format(), "\n") {
		if len(line) == 0 {
			continue
		}

		switch {
		case strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "--- "):
			header.Println(line)
		case strings.HasPrefix(line, "+"):
			added.Println(line)
		case strings.HasPrefix(line, "-"):
			removed.Println(line)
		case strings.HasPrefix(line, "~"):
			modified.Println(line)
		default:
			fmt.Println(line)
		}
	}
}

func printMergeReport(report *merge.Report) {
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	for _, a := range report.Accepted {
		fmt.Printf("%s %s lines %d-%d (similarity %.2f)\n",
			green("accepted"), a.FilePath, a.Block.StartLine+1, a.Block.EndLine+1, a.Block.Similarity)
	}
	for _, c := range report.Conflicts {
		for _, b := range c.Blocks {
			fmt.Printf("%s %s lines %d-%d (similarity %.2f)\n",
				red("conflict"), c.FilePath, b.StartLine+1, b.EndLine+1, b.Similarity)
			fmt.Printf("  source: %q\n  target: %q\n", b.SourceContent, b.TargetContent)
		}
	}

	if report.Clean() {
		fmt.Println(green("No conflicts"))
	} else {
		fmt.Printf("%s in %d file(s)\n", red("Conflicts"), len(report.Conflicts))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

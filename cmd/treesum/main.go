package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	internal "github.com/ZanzyTHEbar/treesum/treesum"
	"github.com/ZanzyTHEbar/treesum/treesum/config"
	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/hashing"
	"github.com/ZanzyTHEbar/treesum/treesum/fingerprint"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app carries state shared by the commands of one invocation
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	logger     zerolog.Logger
	configPath string
	noCache    bool
	noDefaults bool
	stats      bool
	stdout     io.Writer
	stderr     io.Writer
}

func (a *app) engine() (*fingerprint.Engine, error) {
	opts := fingerprint.OptionsFromConfig(a.cfg, a.logger)
	opts.NoCache = a.noCache
	return fingerprint.NewEngine(opts)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   internal.DefaultAppCMDShortCut + " [flags] <root>",
		Short: "Fingerprint a directory tree",
		Long: `treesum prints one digest summarizing the contents of every regular file
under a directory. Per-file checksums are cached by size, mtime and mode so
repeated runs only re-read files that changed.

Examples:
  treesum .
  treesum --algorithm sha256 --stats ~/src/project
  treesum watch ~/src/project`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configPath)
			if err != nil {
				return err
			}
			if a.noDefaults {
				cfg.UseDefaultIgnores = false
			}
			a.cfg = cfg
			a.logger = internal.GetLogger(cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.engine()
			if err != nil {
				return err
			}
			res, err := engine.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, res.Fingerprint)
			if a.stats {
				printStats(a.stderr, res)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default searches ./treesum.yaml and "+internal.DefaultConfigPath+")")
	flags.String("cache-dir", internal.DefaultCacheDir, "directory holding cache files")
	flags.String("algorithm", internal.DefaultAlgorithm, fmt.Sprintf("checksum algorithm %v", hashing.Names()))
	flags.Int("workers", 0, "parallel hashing workers (0 uses one per CPU)")
	flags.String("log-level", internal.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.BoolVar(&a.noDefaults, "no-default-ignores", false, "do not apply the built-in ignore rules")
	flags.BoolVar(&a.noCache, "no-cache", false, "neither read nor write the cache")
	flags.BoolVar(&a.stats, "stats", false, "print run statistics to stderr")

	for key, flag := range map[string]string{
		"cache_dir": "cache-dir",
		"algorithm": "algorithm",
		"workers":   "workers",
		"log_level": "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))
	return rootCmd
}

func printStats(w io.Writer, res *fingerprint.Result) {
	fmt.Fprintf(w, "root:        %s\n", res.Root)
	fmt.Fprintf(w, "algorithm:   %s\n", res.Algorithm)
	fmt.Fprintf(w, "files:       %d\n", res.Files)
	fmt.Fprintf(w, "reused:      %d\n", res.Reused)
	fmt.Fprintf(w, "recomputed:  %d\n", res.Recomputed)
	fmt.Fprintf(w, "dropped:     %d\n", res.Dropped)
	fmt.Fprintf(w, "pruned:      %d dirs, %d files\n", res.Walk.DirsPruned, res.Walk.FilesPruned)
	fmt.Fprintf(w, "skipped:     %d\n", res.Walk.Skipped)
	fmt.Fprintf(w, "cache:       %s\n", res.CachePath)
	fmt.Fprintf(w, "duration:    %s\n", res.Duration)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

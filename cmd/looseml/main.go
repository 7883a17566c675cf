package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dpotapov/go-looseml/ml"
	"github.com/spf13/cobra"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	verbose bool
	grammar string
	xml     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	rootCmd := &cobra.Command{
		Use:          "looseml",
		Short:        "Parse loosely structured HTML and XML",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&gf.verbose, "verbose", "v", false, "log parser events at debug level")
	rootCmd.PersistentFlags().StringVarP(&gf.grammar, "grammar", "g", "", "grammar file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().BoolVar(&gf.xml, "xml", false, "use the case-sensitive XML grammar")
	rootCmd.MarkFlagsMutuallyExclusive("grammar", "xml")

	rootCmd.AddCommand(newParseCmd(&gf))
	rootCmd.AddCommand(newServeCmd(&gf))

	return rootCmd
}

// logger writes to stderr at level, or at debug level with --verbose.
func (gf *globalFlags) logger(cmd *cobra.Command, level slog.Level) *slog.Logger {
	if gf.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadGrammar returns the grammar selected by the flags, or nil for the default.
func (gf *globalFlags) loadGrammar() (*ml.Grammar, error) {
	switch {
	case gf.xml:
		return ml.XMLGrammar(), nil
	case gf.grammar != "":
		return ml.LoadGrammarFile(os.DirFS(filepath.Dir(gf.grammar)), filepath.Base(gf.grammar))
	}
	return nil, nil
}

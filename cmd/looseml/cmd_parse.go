package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dpotapov/go-looseml"
	"github.com/dpotapov/go-looseml/ml"
	"github.com/spf13/cobra"
)

func newParseCmd(gf *globalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "parse [file...]",
		Short: "Parse markup files and print their trees",
		Long: `Parse markup files and print their trees to stdout.

If no file is provided, reads markup from stdin.

The outline format prints one tag per line; diagnostics go to stderr.
The json format prints the same document the serve command responds with.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "outline" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}

			g, err := gf.loadGrammar()
			if err != nil {
				return err
			}
			// diagnostics are printed with the tree, the log only carries errors
			p := &ml.Parser{Grammar: g, Logger: gf.logger(cmd, slog.LevelError)}

			if len(args) == 0 {
				args = []string{"-"}
			}

			failed := 0
			for _, name := range args {
				var src []byte
				if name == "-" {
					src, err = io.ReadAll(cmd.InOrStdin())
				} else {
					src, err = os.ReadFile(name)
				}
				if err != nil {
					return fmt.Errorf("read %s: %w", name, err)
				}

				page, perr := p.Parse(bytes.NewReader(src))
				if perr != nil {
					failed++
				}
				if err := printPage(cmd, format, name, src, page, perr); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d inputs failed to parse", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "outline", "output format: outline or json")

	return cmd
}

func printPage(cmd *cobra.Command, format, name string, src []byte, page *ml.Page, perr error) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(looseml.NewResult(page, perr, src))
	}

	if err := ml.Dump(out, page); err != nil {
		return err
	}
	for _, d := range page.Diagnostics {
		fmt.Fprintf(errOut, "%s:%s: %s\n", name, d.Pos, d.Msg)
	}
	if perr != nil {
		fmt.Fprintf(errOut, "%s:%v\n", name, perr)
	}
	return nil
}

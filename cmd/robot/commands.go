package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deepnoodle-ai/robot/builtins"
	"github.com/deepnoodle-ai/robot/program"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check <file>...",
	Short: "Load robots and report errors without running them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := program.NewLoader(program.WithBaseDir(viper.GetString("base-dir")))
		if failed := checkRobots(cmd.OutOrStdout(), loader, args); failed > 0 {
			return fmt.Errorf("%d of %d robots failed to load", failed, len(args))
		}
		return nil
	},
}

// checkRobots loads every path, prints one line per robot and returns the
// number of failures.
func checkRobots(w io.Writer, loader *program.Loader, paths []string) int {
	failed := 0
	for _, path := range paths {
		if err := loader.Check(path); err != nil {
			failed++
			fmt.Fprintf(w, "%s %s\n", red("FAIL"), errorText(err))
			continue
		}
		fmt.Fprintf(w, "%s %s\n", green("ok"), path)
	}
	return failed
}

var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "List the default constructs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listBuiltins(cmd.OutOrStdout(), viper.GetString("output"))
	},
}

func listBuiltins(w io.Writer, format string) error {
	docs := builtins.Docs()
	if strings.ToLower(format) == "json" {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	for _, spec := range docs {
		fmt.Fprintf(w, "%s(%s) -> %s\n    %s\n", bold(spec.Name), strings.Join(spec.Args, ", "), spec.Returns, spec.Doc)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.ToLower(viper.GetString("output")) == "json" {
			info, err := json.MarshalIndent(map[string]any{
				"version": version,
				"commit":  commit,
				"date":    date,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(info))
			return nil
		}
		fmt.Fprintln(os.Stdout, version)
		return nil
	},
}

package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [paths...]",
	Short: "Normalize forensic artifacts into the case store",
	Long: `Normalize event logs (.evtx), registry hives (NTUSER.DAT, SOFTWARE,
SYSTEM) and registry exports (.reg) into the case's artifact store.
Directories are walked recursively; unrecognized files are skipped.`,
	Example: `  radtriage normalize --case c-2026-014 ./bundle/
  radtriage normalize --case c-2026-014 Security.evtx SOFTWARE ntuser.reg`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := requireCase(cmd)
		if err != nil {
			return err
		}

		paths, err := expandPaths(args)
		if err != nil {
			return err
		}

		p, err := buildPipeline()
		if err != nil {
			return err
		}

		result, err := p.NormalizeFiles(cmd.Context(), st, paths)
		if err != nil {
			return err
		}

		fmt.Printf("Processed %d files (%d skipped): %d events, %d registry entries\n",
			result.FilesProcessed, result.FilesSkipped, result.EventsAppended, result.EntriesAppended)
		for _, failure := range result.Failures {
			fmt.Fprintf(os.Stderr, "failed: %s: %v\n", failure.Path, failure.Err)
		}
		if result.EventsAppended == 0 && result.EntriesAppended == 0 {
			fmt.Println("No parseable artifact produced any record.")
		}
		return nil
	},
}

// expandPaths flattens directory arguments into their contained files.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/esgmap/internal/core"
	"github.com/spf13/cobra"
)

// RunCommand returns the "run" command.
func RunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reconcile a primary table and write the filled copy",
		Long: "Reconcile a primary table against its reference files and write the\n" +
			"filled table next to the primary (or to --out) in the primary's format.\n\n" +
			"Reference files are attached to targets by source key. --taxonomy, --pai\n" +
			"and --esg cover the built-in targets; --source key=path attaches files to\n" +
			"any target defined in a mapping file. Flags may be repeated.\n\n" +
			"Examples:\n" +
			"  esgmap run --primary book.xlsx --taxonomy t1.xlsx --taxonomy t2.xlsx --pai p.xlsx --esg e.xlsx\n" +
			"  esgmap run --primary book.csv --source climate=climate.csv --out filled.csv --json",
		Args: cobra.NoArgs,
		RunE: runRun,
	}

	cmd.Flags().String("primary", "", "Primary table (.xlsx or .csv)")
	cmd.Flags().StringArray("taxonomy", nil, "Taxonomy reference file (repeatable)")
	cmd.Flags().StringArray("pai", nil, "PAI reference file (repeatable)")
	cmd.Flags().StringArray("esg", nil, "ESG reference file (repeatable)")
	cmd.Flags().StringArray("source", nil, "Reference file for any source key, as key=path (repeatable)")
	cmd.Flags().StringP("out", "o", "", "Output path (default: <primary>_filled.<ext> beside the primary)")
	cmd.Flags().Bool("json", false, "Print the run summary as JSON")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sources, err := sourceFlags(cmd)
	if err != nil {
		return err
	}
	primaryPath, _ := cmd.Flags().GetString("primary")

	in, closeAll, err := openInputs(primaryPath, sources)
	defer closeAll()
	if err != nil {
		return err
	}

	svc, err := core.NewService(cfg, nil)
	if err != nil {
		return err
	}

	res, err := svc.Run(context.Background(), in)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(filepath.Dir(primaryPath), res.OutputName)
	}
	if err := os.WriteFile(out, res.Output, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res.Summary())
	}

	printSummary(cmd, res, out)
	return nil
}

// sourceFlags gathers reference paths by source key.
func sourceFlags(cmd *cobra.Command) (map[string][]string, error) {
	sources := make(map[string][]string)
	for _, key := range []string{"taxonomy", "pai", "esg"} {
		if paths, _ := cmd.Flags().GetStringArray(key); len(paths) > 0 {
			sources[key] = append(sources[key], paths...)
		}
	}

	extra, _ := cmd.Flags().GetStringArray("source")
	for _, kv := range extra {
		key, path, ok := strings.Cut(kv, "=")
		key, path = strings.TrimSpace(key), strings.TrimSpace(path)
		if !ok || key == "" || path == "" {
			return nil, fmt.Errorf("invalid --source %q: want key=path", kv)
		}
		sources[key] = append(sources[key], path)
	}
	return sources, nil
}

// openInputs opens every file. A missing primary path is left for the service
// to report alongside any other missing input.
func openInputs(primary string, sources map[string][]string) (core.RunInput, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	open := func(path string) (core.Upload, error) {
		f, err := os.Open(path)
		if err != nil {
			return core.Upload{}, err
		}
		files = append(files, f)
		return core.Upload{Name: filepath.Base(path), Reader: f}, nil
	}

	in := core.RunInput{Sources: make(map[string][]core.Upload)}

	if primary != "" {
		u, err := open(primary)
		if err != nil {
			return in, closeAll, err
		}
		in.Primary = &u
	}

	for key, paths := range sources {
		for _, p := range paths {
			u, err := open(p)
			if err != nil {
				return in, closeAll, err
			}
			in.Sources[key] = append(in.Sources[key], u)
		}
	}

	return in, closeAll, nil
}

func printSummary(cmd *cobra.Command, res *core.RunResult, out string) {
	stdout := cmd.OutOrStdout()
	fmt.Fprintf(stdout, "Run %s: %d rows written to %s\n\n", res.RunID, res.TotalRows, out)

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TARGET\tUPDATED\tMATCHED\tREFERENCE IDS\tCREATED")
	for _, c := range res.Counts {
		fmt.Fprintf(w, "  %s\t%d\t%d\t%d\t%t\n", c.Field, c.Updated, c.Matched, c.ReferenceIDs, c.Created)
	}
	w.Flush()

	if len(res.Warnings) > 0 {
		fmt.Fprintf(stdout, "\nWarnings:\n")
		for _, warn := range res.Warnings {
			fmt.Fprintf(stdout, "  - %s\n", warn.Error())
		}
	}
}

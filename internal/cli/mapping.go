package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// MappingCommand returns the "mapping" command.
func MappingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Print the effective mapping configuration",
		Args:  cobra.NoArgs,
		RunE:  runMapping,
	}

	cmd.Flags().Bool("json", false, "Print the target list as JSON")

	return cmd
}

func runMapping(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	m := cfg.Mapping
	targets := m.Targets()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(targets)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Identity field:\t%s\n", m.IdentityField)
	fmt.Fprintf(w, "  Placeholders:\t%s\n", strings.Join(m.Placeholders, ", "))
	fmt.Fprintf(w, "  Case sensitive:\t%t\n", m.PlaceholderCaseSensitive)
	fmt.Fprintf(w, "  Case-sensitive headers:\t%t\n", m.HeaderCaseSensitive)
	fmt.Fprintf(w, "  Fill value:\t%q\n", m.FillValue)
	fmt.Fprintf(w, "  Overwrite policy:\t%s\n", m.OverwritePolicy)
	fmt.Fprintf(w, "  Primary header row:\t%d\n", m.PrimaryHeaderRow)
	if m.File != "" {
		fmt.Fprintf(w, "  Mapping file:\t%s\n", m.File)
	}
	w.Flush()

	fmt.Fprintln(cmd.OutOrStdout())

	w = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FIELD\tSOURCE\tCOLUMN\tHEADER ROW\tSHEET\tMIN FILES")
	for _, t := range targets {
		sheet := t.Sheet
		if sheet == "" {
			sheet = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\t%d\n", t.Field, t.Source, t.Column, t.HeaderRow, sheet, t.MinFiles)
	}
	return w.Flush()
}

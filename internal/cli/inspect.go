package cli

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/esgmap/internal/workbook"
	"github.com/spf13/cobra"
)

// InspectCommand returns the "inspect" command.
func InspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show a file's headers and row count at a header row",
		Long: "Read FILE the way a run would and print its columns and data row count.\n" +
			"Use it to check header offsets before configuring a reference source.\n\n" +
			"Examples:\n" +
			"  esgmap inspect esg.xlsx --header-row 5\n" +
			"  esgmap inspect book.xlsx --sheet Holdings",
		Args: cobra.ExactArgs(1),
		RunE: runInspect,
	}

	cmd.Flags().Int("header-row", 1, "1-based row holding the column names")
	cmd.Flags().String("sheet", "", "Worksheet to read (default: first sheet)")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	headerRow, _ := cmd.Flags().GetInt("header-row")
	sheet, _ := cmd.Flags().GetString("sheet")

	t, err := workbook.ReadFile(args[0], workbook.ReadOptions{HeaderRow: headerRow, Sheet: sheet})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d columns, %d data rows (header row %d)\n", args[0], len(t.Columns), t.Len(), max(headerRow, 1))
	for i, col := range t.Columns {
		trimmed := strings.TrimSpace(col)
		if trimmed != col {
			fmt.Fprintf(out, "  %3d  %q (matches as %q)\n", i+1, col, trimmed)
			continue
		}
		fmt.Fprintf(out, "  %3d  %q\n", i+1, col)
	}
	return nil
}

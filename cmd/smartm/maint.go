package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartm-app/smartm/internal/app"
	"github.com/smartm-app/smartm/internal/migrate"
	"github.com/smartm-app/smartm/internal/report"
	"github.com/smartm-app/smartm/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "maint",
	Short:   "Copy the legacy file store into the SQLite database",
	Long: `Copy every collection and setting from the file store (storage.legacy_dir)
into the SQLite database. Requires storage.driver=sqlite.

Tables that already hold rows are left alone, so running this twice never
duplicates records. After a clean run the migration is marked complete and
later runs do nothing unless --force is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		force, _ := cmd.Flags().GetBool("force")

		a := openApp(ctx)
		defer a.Close()

		res, err := a.Migrate(ctx, migrate.Options{Force: force})
		if errors.Is(err, app.ErrNoDatabase) {
			fatalf("migrate needs storage.driver=sqlite (current: %s)", a.Kind)
		}
		if err != nil && !errors.Is(err, migrate.ErrIncomplete) {
			fatalf("%v", err)
		}
		if res.AlreadyDone {
			fmt.Printf("%s Migration already completed (use --force to re-run)\n", ui.RenderPass("✓"))
			return
		}

		for _, step := range res.Steps {
			switch {
			case step.Err != nil:
				fmt.Printf("   %s %-22s %v\n", ui.RenderFail("✗"), step.Collection, step.Err)
			case step.Copied > 0:
				fmt.Printf("   %s %-22s %d records\n", ui.RenderPass("✓"), step.Collection, step.Copied)
			default:
				fmt.Printf("   %s %-22s skipped\n", ui.RenderMuted("-"), step.Collection)
			}
		}
		fmt.Printf("   Settings copied: %d\n", res.KeysCopied)

		if len(res.Errors) > 0 {
			fmt.Fprintf(os.Stderr, "%s Migration finished with %d errors\n", ui.RenderWarn("!"), len(res.Errors))
			_ = a.Close()
			os.Exit(1)
		}
		fmt.Printf("%s Migrated %d records\n", ui.RenderPass("✓"), res.Copied())
	},
}

var reportCmd = &cobra.Command{
	Use:     "report",
	GroupID: "maint",
	Short:   "Export an activity report as a spreadsheet",
	Long: `Write an .xlsx report with a summary sheet and one sheet per domain.

Examples:
  smartm report                               # every domain, current month
  smartm report --month 2024-03 --domains finance,tasks
  smartm report --out reports/`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")
		month, _ := cmd.Flags().GetString("month")
		names, _ := cmd.Flags().GetStringSlice("domains")

		var domains []report.Domain
		for _, n := range names {
			d, err := report.ParseDomain(strings.TrimSpace(n))
			if err != nil {
				fatalf("%v", err)
			}
			domains = append(domains, d)
		}

		a := openApp(ctx)
		defer a.Close()

		data, err := report.Collect(ctx, a.Service, report.Options{Domains: domains, Month: month})
		if err != nil {
			fatalf("%v", err)
		}

		path := out
		if path == "" || strings.HasSuffix(path, string(os.PathSeparator)) {
			path = filepath.Join(path, data.FileName("xlsx"))
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			fatalf("%v", err)
		}
		f, err := os.Create(path)
		if err != nil {
			fatalf("%v", err)
		}
		if err := report.WriteXLSX(data, f); err != nil {
			_ = f.Close()
			fatalf("%v", err)
		}
		if err := f.Close(); err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Report written to %s\n", ui.RenderPass("✓"), path)
	},
}

func init() {
	migrateCmd.Flags().Bool("force", false, "Run even if a previous migration completed")
	reportCmd.Flags().StringP("out", "o", "", "Output file or directory (default: SmartM_Report_YYYY_MM.xlsx)")
	reportCmd.Flags().String("month", "", "Month for the finance section, YYYY-MM (default: current)")
	reportCmd.Flags().StringSlice("domains", nil, "Domains: equipment, personnel, finance, tasks (default: all)")

	rootCmd.AddCommand(migrateCmd, reportCmd)
}

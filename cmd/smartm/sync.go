package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartm-app/smartm/internal/ui"
	smsync "github.com/smartm-app/smartm/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show pending changes and auto-sync settings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		st := a.Sync.State(ctx)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(st)
			return
		}

		fmt.Printf("\n%s Sync Status\n\n", ui.RenderAccent("SmartM"))
		fmt.Println(ui.Field("Storage", fmt.Sprintf("%s (%s)", a.Kind, a.Store.Driver().Name())))
		fmt.Println(ui.Field("Mode", string(a.Mode)))

		pending := fmt.Sprintf("%d", st.PendingCount)
		if st.PendingCount > 0 {
			pending = ui.RenderWarn(pending)
		} else {
			pending = ui.RenderPass(pending)
		}
		fmt.Println(ui.Field("Pending changes", pending))
		fmt.Println(ui.Field("Last attempt", formatTime(st.LastSyncAttempt)))
		fmt.Println(ui.Field("Last success", formatTime(st.LastSuccessfulSync)))

		auto := ui.RenderMuted("off")
		if st.AutoSync {
			auto = ui.RenderPass(fmt.Sprintf("every %d min", st.SyncFrequency))
		}
		fmt.Println(ui.Field("Auto-sync", auto))

		if len(st.Entities) > 0 {
			fmt.Println()
			for _, t := range smsync.EntityTypes() {
				e, ok := st.Entities[t]
				if !ok {
					continue
				}
				fmt.Println(ui.Field("  "+string(t), fmt.Sprintf("%d pending, last sync %s", e.PendingCount, formatTime(e.LastSync))))
			}
		}
		fmt.Println()
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync [type...]",
	GroupID: "sync",
	Short:   "Synchronize pending changes",
	Long: `Run one sync pass for the given entity types, or for every type with
pending changes when none are named.

Types: equipment, personnel, instances, consumptions, failures.

In online mode the pass goes through the remote and may fail, in which case
pending counts are kept. Local mode clears them without a remote call.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		mode := a.Mode
		if m, _ := cmd.Flags().GetString("mode"); m != "" {
			parsed, err := smsync.ParseMode(m)
			if err != nil {
				fatalf("%v", err)
			}
			mode = parsed
		}

		types := make([]smsync.EntityType, 0, len(args))
		for _, arg := range args {
			t, err := smsync.ParseEntityType(arg)
			if err != nil {
				fatalf("%v", err)
			}
			types = append(types, t)
		}

		fmt.Printf("%s Syncing (%s)...\n", ui.RenderAccent("↻"), mode)
		start := time.Now()
		res := a.Sync.Run(ctx, types, mode)

		switch {
		case res.Skipped:
			fmt.Printf("%s A sync is already running\n", ui.RenderWarn("!"))
		case res.OK && len(res.Synced) == 0:
			fmt.Printf("%s Nothing to sync\n", ui.RenderPass("✓"))
		case res.OK:
			fmt.Printf("%s Synced %v in %v\n", ui.RenderPass("✓"), res.Synced, time.Since(start).Round(time.Millisecond))
		default:
			fmt.Fprintf(os.Stderr, "%s Sync failed: %v\n", ui.RenderFail("✗"), res.Err)
			_ = a.Close()
			os.Exit(1)
		}
	},
}

var autosyncCmd = &cobra.Command{
	Use:     "autosync",
	GroupID: "sync",
	Short:   "Configure periodic synchronization",
	Long: `Enable or disable auto-sync and set its period in minutes. The period is
applied by 'smartm serve'.

Examples:
  smartm autosync --enable --every 15
  smartm autosync --disable`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		enable, _ := cmd.Flags().GetBool("enable")
		disable, _ := cmd.Flags().GetBool("disable")
		if enable && disable {
			fatalf("--enable and --disable are mutually exclusive")
		}

		a := openApp(ctx)
		defer a.Close()

		st := a.Sync.State(ctx)
		auto := st.AutoSync
		switch {
		case enable:
			auto = true
		case disable:
			auto = false
		}
		every := st.SyncFrequency
		if cmd.Flags().Changed("every") {
			every, _ = cmd.Flags().GetInt("every")
		}

		if err := a.Sync.SetAutoSyncSettings(ctx, auto, every); err != nil {
			fatalf("%v", err)
		}
		if auto {
			fmt.Printf("%s Auto-sync every %d min\n", ui.RenderPass("✓"), every)
		} else {
			fmt.Printf("%s Auto-sync disabled\n", ui.RenderPass("✓"))
		}
	},
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ui.RenderMuted("never")
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func init() {
	statusCmd.Flags().Bool("json", false, "Output the raw sync state as JSON")
	syncCmd.Flags().String("mode", "", "Sync mode: online or local (default from config)")
	autosyncCmd.Flags().Bool("enable", false, "Turn auto-sync on")
	autosyncCmd.Flags().Bool("disable", false, "Turn auto-sync off")
	autosyncCmd.Flags().Int("every", smsync.DefaultFrequency, "Period in minutes")

	rootCmd.AddCommand(statusCmd, syncCmd, autosyncCmd)
}

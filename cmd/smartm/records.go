package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartm-app/smartm/internal/model"
	"github.com/smartm-app/smartm/internal/ui"
)

var equipmentCmd = &cobra.Command{
	Use:     "equipment",
	GroupID: "data",
	Short:   "Manage equipment",
}

var equipmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List equipment with operability",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		items := a.Service.Equipment(ctx)
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(items)
			return
		}

		if len(items) == 0 {
			fmt.Println(ui.RenderMuted("No equipment"))
			return
		}
		for _, e := range items {
			fmt.Printf("%4d  %-28s %-16s %s\n", e.ID, e.Name, renderStatus(e.Status), e.Service)
		}
		fmt.Printf("\nOperability: %d%%\n", a.Service.Operability(ctx))
	},
}

var equipmentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an equipment item",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		service, _ := cmd.Flags().GetString("service")
		status, _ := cmd.Flags().GetString("status")
		sensitivity, _ := cmd.Flags().GetInt("sensitivity")

		a := openApp(ctx)
		defer a.Close()

		e, err := a.Service.AddEquipment(ctx, model.Equipment{
			Name:        args[0],
			Service:     service,
			Status:      model.EquipmentStatus(status),
			Sensitivity: sensitivity,
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Added equipment %d (%s)\n", ui.RenderPass("✓"), e.ID, e.Name)
	},
}

var equipmentStatusCmd = &cobra.Command{
	Use:   "status <id> <operational|maintenance|outOfService>",
	Short: "Change the status of an equipment item",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id := parseID(args[0])

		a := openApp(ctx)
		defer a.Close()

		if err := a.Service.SetEquipmentStatus(ctx, id, model.EquipmentStatus(args[1])); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Equipment %d is now %s\n", ui.RenderPass("✓"), id, renderStatus(model.EquipmentStatus(args[1])))
	},
}

var equipmentRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove an equipment item and its failures",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id := parseID(args[0])

		a := openApp(ctx)
		defer a.Close()

		if err := a.Service.RemoveEquipment(ctx, id); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Removed equipment %d\n", ui.RenderPass("✓"), id)
	},
}

var failureCmd = &cobra.Command{
	Use:     "failure",
	GroupID: "data",
	Short:   "Record equipment failures",
}

var failureAddCmd = &cobra.Command{
	Use:   "add <equipment-id> <type>",
	Short: "Record a failure",
	Long: `Record a failure of an equipment item.

--date accepts YYYY-MM-DD or relative phrases such as "yesterday" or
"last monday". It defaults to today.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		equipmentID := parseID(args[0])
		dateFlag, _ := cmd.Flags().GetString("date")
		component, _ := cmd.Flags().GetString("component")
		reference, _ := cmd.Flags().GetString("reference")

		date, err := parseDay(dateFlag, time.Now())
		if err != nil {
			fatalf("%v", err)
		}

		a := openApp(ctx)
		defer a.Close()

		f, err := a.Service.AddFailure(ctx, model.EquipmentFailure{
			EquipmentID: equipmentID,
			FailureType: args[1],
			FailureDate: date,
			Component:   component,
			Reference:   reference,
		})
		if err != nil {
			fatalf("%v", err)
		}
		total := len(a.Service.EquipmentFailures(ctx, equipmentID))
		fmt.Printf("%s Failure %d recorded on %s (%d for this equipment)\n", ui.RenderPass("✓"), f.ID, f.FailureDate, total)
	},
}

var absenceCmd = &cobra.Command{
	Use:     "absence",
	GroupID: "data",
	Short:   "Record personnel absences",
}

var absenceAddCmd = &cobra.Command{
	Use:   "add <personnel-id>",
	Short: "Record an absence",
	Long: `Record an absence for a person. --from and --until accept YYYY-MM-DD or
relative phrases ("today", "next friday", "in 2 weeks").`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		personnelID := parseID(args[0])
		fromFlag, _ := cmd.Flags().GetString("from")
		untilFlag, _ := cmd.Flags().GetString("until")
		reason, _ := cmd.Flags().GetString("reason")

		now := time.Now()
		from, err := parseDay(fromFlag, now)
		if err != nil {
			fatalf("%v", err)
		}
		until, err := parseDay(untilFlag, now)
		if err != nil {
			fatalf("%v", err)
		}
		if until < from {
			fatalf("--until (%s) is before --from (%s)", until, from)
		}

		a := openApp(ctx)
		defer a.Close()

		abs, err := a.Service.AddAbsence(ctx, model.PersonnelAbsence{
			PersonnelID: personnelID,
			Reason:      reason,
			StartDate:   from,
			EndDate:     until,
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s %s absent %s to %s\n", ui.RenderPass("✓"), abs.PersonnelName, abs.StartDate, abs.EndDate)
	},
}

var absenceRejoinCmd = &cobra.Command{
	Use:   "rejoin <absence-id>",
	Short: "Mark an absence as ended",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id := parseID(args[0])
		dateFlag, _ := cmd.Flags().GetString("date")
		date, err := parseDay(dateFlag, time.Now())
		if err != nil {
			fatalf("%v", err)
		}

		a := openApp(ctx)
		defer a.Close()

		if err := a.Service.MarkAbsenceRejoined(ctx, id, date); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Absence %d closed on %s\n", ui.RenderPass("✓"), id, date)
	},
}

var notifyCmd = &cobra.Command{
	Use:     "notify",
	GroupID: "data",
	Short:   "Notification checks and inbox",
}

var notifyCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the notification checks once",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		n, err := a.Notify.CheckAll(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("!"), err)
		}
		fmt.Printf("%s %d new notifications\n", ui.RenderPass("✓"), n)
	},
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show unread notifications",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		unread := a.Notify.Unread(ctx)
		if len(unread) == 0 {
			fmt.Println(ui.RenderMuted("No unread notifications"))
			return
		}
		for _, n := range unread {
			fmt.Printf("%4d  %s  %s\n      %s\n", n.ID, renderNotificationType(n.Type), ui.RenderAccent(n.Title), n.Message)
		}
	},
}

var notifyReadCmd = &cobra.Command{
	Use:   "read [id]",
	Short: "Mark one notification, or all of them, read",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.Close()

		if len(args) == 1 {
			if err := a.Notify.MarkRead(ctx, parseID(args[0])); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Marked read\n", ui.RenderPass("✓"))
			return
		}
		n, err := a.Notify.MarkAllRead(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Marked %d notifications read\n", ui.RenderPass("✓"), n)
	},
}

func parseID(s string) int {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		fatalf("invalid id %q", s)
	}
	return id
}

func renderStatus(s model.EquipmentStatus) string {
	switch s {
	case model.StatusOperational:
		return ui.RenderPass(string(s))
	case model.StatusMaintenance:
		return ui.RenderWarn(string(s))
	default:
		return ui.RenderFail(string(s))
	}
}

func renderNotificationType(t model.NotificationType) string {
	switch t {
	case model.NotifyWarning, model.NotifyError:
		return ui.RenderWarn("!")
	default:
		return ui.RenderAccent("i")
	}
}

func init() {
	equipmentListCmd.Flags().Bool("json", false, "Output as JSON")
	equipmentAddCmd.Flags().String("service", "", "Owning service")
	equipmentAddCmd.Flags().String("status", string(model.StatusOperational), "operational, maintenance or outOfService")
	equipmentAddCmd.Flags().Int("sensitivity", 3, "Sensitivity weight, 1 to 5")

	failureAddCmd.Flags().String("date", "", "Failure date (default: today)")
	failureAddCmd.Flags().String("component", "", "Failed component")
	failureAddCmd.Flags().String("reference", "", "Work order or ticket reference")
	absenceAddCmd.Flags().String("from", "", "First day of absence (default: today)")
	absenceAddCmd.Flags().String("until", "", "Last day of absence (default: today)")
	absenceAddCmd.Flags().String("reason", model.ReasonAnnualLeave, "Reason")
	absenceRejoinCmd.Flags().String("date", "", "Return date (default: today)")

	equipmentCmd.AddCommand(equipmentListCmd, equipmentAddCmd, equipmentStatusCmd, equipmentRemoveCmd)
	failureCmd.AddCommand(failureAddCmd)
	absenceCmd.AddCommand(absenceAddCmd, absenceRejoinCmd)
	notifyCmd.AddCommand(notifyCheckCmd, notifyListCmd, notifyReadCmd)
	rootCmd.AddCommand(equipmentCmd, failureCmd, absenceCmd, notifyCmd)
}

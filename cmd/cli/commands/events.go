package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
)

// SetOversightCmd creates the setOversight command
func SetOversightCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setOversight <event_id> <position_id>...",
		Short: "Set the overseer and/or keyman for one or more positions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var oversight services.OversightArgs
			if cmd.Flags().Changed("overseer") {
				v, _ := cmd.Flags().GetString("overseer")
				oversight.OverseerID = &v
			}
			if cmd.Flags().Changed("keyman") {
				v, _ := cmd.Flags().GetString("keyman")
				oversight.KeymanID = &v
			}

			result, err := services.BulkSetOversight(app.Ctx, app.Database, app.People, app.Logger, app.Caller, args[0], args[1:], oversight)
			if err != nil {
				return err
			}

			fmt.Printf("\n✅ Oversight set on %d position(s)\n\n", result.Updated)
			return nil
		},
	}

	cmd.Flags().String("overseer", "", "Overseer identity id")
	cmd.Flags().String("keyman", "", "Keyman identity id")

	return cmd
}

// ClearOversightCmd creates the clearOversight command
func ClearOversightCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clearOversight <event_id> <position_id>",
		Short: "Remove the oversight row for a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.ClearOversight(app.Ctx, app.Database, app.Logger, app.Caller, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("\n✅ Oversight cleared\n\n")
			return nil
		},
	}
}

// ClearAssignmentsCmd creates the clearAssignments command
func ClearAssignmentsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clearAssignments <event_id>",
		Short: "Delete every assignment of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("yes")
			if !confirm {
				return fmt.Errorf("refusing to clear assignments without --yes")
			}

			result, err := services.ClearAssignments(app.Ctx, app.Database, app.Logger, app.Caller, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n✅ Deleted %d assignment(s)\n\n", result.DeletedCount)
			return nil
		},
	}

	cmd.Flags().Bool("yes", false, "Confirm the bulk delete")

	return cmd
}

// ExportPositionsCmd creates the exportPositions command
func ExportPositionsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exportPositions <event_id> <output.xlsx>",
		Short: "Export an event's positions, oversight and assignment totals to a spreadsheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()

			rows, err := services.ExportPositions(app.Ctx, app.Database, app.People, app.Logger, args[0], f)
			if err != nil {
				return err
			}

			fmt.Printf("\n✅ Exported %d position(s) to %s\n\n", rows, args[1])
			return nil
		},
	}
}

// ScheduleCountsCmd creates the scheduleCounts command
func ScheduleCountsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduleCounts",
		Short: "Create the count sessions defined under countSchedules in the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(app.Cfg.CountSchedules) == 0 {
				fmt.Println("No count schedules configured.")
				return nil
			}

			startFlag, _ := cmd.Flags().GetString("start")
			start := time.Now().UTC()
			if startFlag != "" {
				parsed, err := time.Parse(time.RFC3339, startFlag)
				if err != nil {
					return fmt.Errorf("start must be RFC3339: %w", err)
				}
				start = parsed
			}

			for _, schedule := range app.Cfg.CountSchedules {
				app.Logger.Info("scheduling counts",
					zap.String("event_id", schedule.EventID),
					zap.String("rrule", schedule.RRule))

				result, err := services.ScheduleSessions(app.Ctx, app.Database, app.Cfg, app.Logger, app.Caller, schedule.EventID, schedule.NamePrefix, schedule.RRule, start)
				if err != nil {
					fmt.Printf("❌ %s (%s): %v\n", schedule.NamePrefix, schedule.EventID, err)
					continue
				}

				fmt.Printf("✅ %s (%s): %d session(s)\n", schedule.NamePrefix, schedule.EventID, result.Created)
				for _, s := range result.Sessions {
					fmt.Printf("    %s\n", s.SessionName)
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("start", "", "Recurrence start (RFC3339, defaults to now)")

	return cmd
}

// CompareCountsCmd creates the compareCounts command
func CompareCountsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "compareCounts <event_id> <session_id> <session_id>...",
		Short: "Compare attendance totals across count sessions",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.CompareSessions(app.Ctx, app.Database, args[0], args[1:])
			if err != nil {
				return err
			}

			fmt.Println()
			header := []string{fmt.Sprintf("%-24s", app.Terms.Term("position"))}
			for _, s := range result.Sessions {
				header = append(header, fmt.Sprintf("%12s", truncate(s.SessionName, 12)))
			}
			fmt.Println(strings.Join(header, " "))

			for _, p := range result.Positions {
				row := []string{fmt.Sprintf("%-24s", truncate(fmt.Sprintf("%d. %s", p.PositionNumber, p.PositionName), 24))}
				for _, s := range result.Sessions {
					cell := "-"
					if c, ok := p.Counts[s.ID]; ok {
						cell = strconv.Itoa(c.AttendeeCount)
					}
					row = append(row, fmt.Sprintf("%12s", cell))
				}
				fmt.Println(strings.Join(row, " "))
			}

			totals := []string{fmt.Sprintf("%-24s", "Total")}
			for _, s := range result.Sessions {
				totals = append(totals, fmt.Sprintf("%12d", s.TotalCount))
			}
			fmt.Println(strings.Join(totals, " "))
			fmt.Println()
			return nil
		},
	}
}

func parseIntArg(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", name, err)
	}
	return n, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

type identityInvalidator interface {
	Invalidate(ctx context.Context, ids ...string) error
}

// RefreshIdentitiesCmd creates the refreshIdentities command
func RefreshIdentitiesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refreshIdentities <identity_id>...",
		Short: "Drop cached identities after people change upstream",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, ok := app.People.(identityInvalidator)
			if !ok {
				fmt.Println("Identity cache is not enabled; nothing to refresh.")
				return nil
			}

			if err := cache.Invalidate(app.Ctx, args...); err != nil {
				return err
			}

			app.Logger.Info("identities refreshed", zap.Strings("ids", args))
			fmt.Printf("\n✅ Refreshed %d identit(ies)\n\n", len(args))
			return nil
		},
	}
}

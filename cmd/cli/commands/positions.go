package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/core/services"
	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// CreatePositionsCmd creates the createPositions command
func CreatePositionsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createPositions <event_id> <start> <end>",
		Short: "Create a numbered range of positions stamped with a shift template",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseIntArg("start", args[1])
			if err != nil {
				return err
			}
			end, err := parseIntArg("end", args[2])
			if err != nil {
				return err
			}
			prefix, _ := cmd.Flags().GetString("prefix")
			template, _ := cmd.Flags().GetString("template")
			area, _ := cmd.Flags().GetString("area")

			app.Logger.Info("createPositions command",
				zap.String("event_id", args[0]),
				zap.Int("start", start),
				zap.Int("end", end),
				zap.String("template", template))

			bulk := services.BulkCreateArgs{
				StartNumber:     start,
				EndNumber:       end,
				NamePrefix:      prefix,
				ShiftTemplateID: template,
			}
			if area != "" {
				bulk.Area = &area
			}

			result, err := services.BulkCreatePositions(app.Ctx, app.Database, app.Cfg, app.Logger, app.Caller, args[0], bulk)
			if err != nil {
				return err
			}

			fmt.Printf("\n✅ Created %d %s(s)\n\n", result.Created, strings.ToLower(app.Terms.Term("position")))
			for _, p := range result.Positions {
				fmt.Printf("  %3d. %-30s %d %s(s)\n", p.PositionNumber, p.Name, len(p.Shifts), strings.ToLower(app.Terms.Term("shift")))
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("prefix", "Position", "Name prefix for the created positions")
	cmd.Flags().String("template", "", "Built-in template type or stored template id")
	cmd.Flags().String("area", "", "Area assigned to every created position")

	return cmd
}

// ListPositionsCmd creates the listPositions command
func ListPositionsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listPositions <event_id>",
		Short: "List an event's positions with their shifts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			positions, err := services.ListPositions(app.Ctx, app.Database, args[0])
			if err != nil {
				return err
			}

			if len(positions) == 0 {
				fmt.Println("No positions found for this event.")
				return nil
			}

			fmt.Printf("\nFound %d %s(s):\n\n", len(positions), strings.ToLower(app.Terms.Term("position")))
			for _, p := range positions {
				fmt.Println(formatPosition(p))
			}
			fmt.Println()
			return nil
		},
	}
}

// ApplyTemplateCmd creates the applyTemplate command
func ApplyTemplateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "applyTemplate <event_id> <template> <position_id>...",
		Short: "Append a template's shifts to existing positions",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.ApplyTemplate(app.Ctx, app.Database, app.Logger, app.Caller, args[0], services.ApplyTemplateArgs{
				TemplateType: args[1],
				PositionIDs:  args[2:],
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✅ Applied %q\n\n", result.TemplateType)
			for _, p := range result.Positions {
				fmt.Printf("  #%d: +%d (now %d)\n", p.PositionNumber, p.ShiftsAdded, p.TotalShifts)
			}
			fmt.Println()
			return nil
		},
	}
}

// ListTemplatesCmd creates the listTemplates command
func ListTemplatesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listTemplates",
		Short: "List built-in and stored shift templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := services.ListTemplates(app.Ctx, app.Database)
			if err != nil {
				return err
			}

			fmt.Println("\nBuilt-in templates:")
			for _, b := range listing.Builtin {
				fmt.Printf("  %-10s %s\n", b.Type, describeBlueprints(b.Shifts))
			}
			if len(listing.Stored) > 0 {
				fmt.Println("\nStored templates:")
				for _, t := range listing.Stored {
					system := ""
					if t.IsSystem {
						system = " [system]"
					}
					fmt.Printf("  %s  %s%s\n      %s\n", t.ID, t.Name, system, describeBlueprints(t.Shifts))
				}
			}
			fmt.Println()
			return nil
		},
	}
}

func formatPosition(p db.Position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %3d. %s", p.PositionNumber, p.Name)
	if p.Area != nil && *p.Area != "" {
		fmt.Fprintf(&b, " (%s)", *p.Area)
	}
	if !p.IsActive {
		b.WriteString(" [inactive]")
	}
	fmt.Fprintf(&b, "  id=%s", p.ID)
	for _, s := range p.Shifts {
		fmt.Fprintf(&b, "\n       - %s", formatShift(s))
	}
	return b.String()
}

func formatShift(s db.Shift) string {
	if s.IsAllDay {
		return s.Name + " (all day)"
	}
	if s.StartTime != nil && s.EndTime != nil {
		return fmt.Sprintf("%s (%s-%s)", s.Name, *s.StartTime, *s.EndTime)
	}
	return s.Name
}

func describeBlueprints(blueprints []db.ShiftBlueprint) string {
	parts := make([]string, 0, len(blueprints))
	for _, bp := range blueprints {
		if bp.IsAllDay {
			parts = append(parts, bp.Name+" (all day)")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s-%s)", bp.Name, bp.StartTime, bp.EndTime))
	}
	return strings.Join(parts, "; ")
}

// Package shifttemplates holds the built-in shift patterns and blueprint validation.
// Built-in templates are plain data; stamping them onto positions copies the values.
package shifttemplates

import (
	"fmt"
	"time"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

// Template types accepted when applying a template
const (
	TypeStandard = "standard"
	TypeExtended = "extended"
	TypeAllDay   = "allday"
	TypeCustom   = "custom"
)

const clockLayout = "15:04"

var builtins = map[string][]db.ShiftBlueprint{
	TypeStandard: {
		{Name: "Morning 1", StartTime: "07:50", EndTime: "10:00"},
		{Name: "Morning 2", StartTime: "10:00", EndTime: "12:00"},
		{Name: "Afternoon 1", StartTime: "12:00", EndTime: "14:00"},
		{Name: "Afternoon 2", StartTime: "14:00", EndTime: "17:00"},
	},
	TypeExtended: {
		{Name: "Early Morning", StartTime: "06:30", EndTime: "08:30"},
		{Name: "Morning", StartTime: "08:30", EndTime: "10:30"},
		{Name: "Late Morning", StartTime: "10:30", EndTime: "12:45"},
		{Name: "Early Afternoon", StartTime: "12:45", EndTime: "15:00"},
		{Name: "Late Afternoon", StartTime: "15:00", EndTime: "21:00"},
	},
	TypeAllDay: {
		{Name: "All Day", IsAllDay: true},
	},
}

// Builtin returns a copy of the named built-in template
func Builtin(templateType string) ([]db.ShiftBlueprint, bool) {
	shifts, ok := builtins[templateType]
	if !ok {
		return nil, false
	}
	out := make([]db.ShiftBlueprint, len(shifts))
	copy(out, shifts)
	return out, true
}

// BuiltinTypes lists the built-in template types in display order
func BuiltinTypes() []string {
	return []string{TypeStandard, TypeExtended, TypeAllDay}
}

// SystemTemplates are the stored templates seeded into every deployment
func SystemTemplates() []db.ShiftTemplate {
	return []db.ShiftTemplate{
		{
			Name:        "All Day",
			Description: "Single all-day shift",
			Shifts:      []db.ShiftBlueprint{{Name: "All Day", IsAllDay: true}},
			IsSystem:    true,
		},
		{
			Name:        "Circuit Assembly Standard",
			Description: "Standard circuit assembly shift pattern",
			Shifts: []db.ShiftBlueprint{
				{Name: "9:50 to 10", StartTime: "09:50", EndTime: "10:00"},
				{Name: "10 to 12", StartTime: "10:00", EndTime: "12:00"},
				{Name: "12 to 2", StartTime: "12:00", EndTime: "14:00"},
				{Name: "2 to 5", StartTime: "14:00", EndTime: "17:00"},
			},
			IsSystem: true,
		},
		{
			Name:        "Morning/Afternoon",
			Description: "Simple two-shift pattern",
			Shifts: []db.ShiftBlueprint{
				{Name: "Morning", StartTime: "09:00", EndTime: "13:00"},
				{Name: "Afternoon", StartTime: "13:00", EndTime: "17:00"},
			},
			IsSystem: true,
		},
		{
			Name:        "Three Hour Blocks",
			Description: "Standard 3-hour shifts",
			Shifts: []db.ShiftBlueprint{
				{Name: "9 to 12", StartTime: "09:00", EndTime: "12:00"},
				{Name: "12 to 3", StartTime: "12:00", EndTime: "15:00"},
				{Name: "3 to 6", StartTime: "15:00", EndTime: "18:00"},
			},
			IsSystem: true,
		},
		{
			Name:        "Regional Convention",
			Description: "Extended shifts for regional conventions",
			Shifts: []db.ShiftBlueprint{
				{Name: "8:30 to 10", StartTime: "08:30", EndTime: "10:00"},
				{Name: "10 to 12", StartTime: "10:00", EndTime: "12:00"},
				{Name: "12 to 2", StartTime: "12:00", EndTime: "14:00"},
				{Name: "2 to 4", StartTime: "14:00", EndTime: "16:00"},
				{Name: "4 to 6", StartTime: "16:00", EndTime: "18:00"},
			},
			IsSystem: true,
		},
	}
}

// Validate checks every blueprint and returns one problem string per invalid entry.
// All-day blueprints must not carry times; timed blueprints need HH:MM start before end.
func Validate(blueprints []db.ShiftBlueprint) []string {
	var problems []string
	for i, bp := range blueprints {
		if bp.Name == "" {
			problems = append(problems, fmt.Sprintf("shifts[%d]: name is required", i))
		}
		if bp.IsAllDay {
			if bp.StartTime != "" || bp.EndTime != "" {
				problems = append(problems, fmt.Sprintf("shifts[%d]: all-day shift cannot have start or end time", i))
			}
			continue
		}
		start, err := time.Parse(clockLayout, bp.StartTime)
		if err != nil {
			problems = append(problems, fmt.Sprintf("shifts[%d]: start time %q is not HH:MM", i, bp.StartTime))
			continue
		}
		end, err := time.Parse(clockLayout, bp.EndTime)
		if err != nil {
			problems = append(problems, fmt.Sprintf("shifts[%d]: end time %q is not HH:MM", i, bp.EndTime))
			continue
		}
		if !end.After(start) {
			problems = append(problems, fmt.Sprintf("shifts[%d]: end time %s must be after start time %s", i, bp.EndTime, bp.StartTime))
		}
	}
	return problems
}

// ToShift materialises a blueprint as a shift row for a position
func ToShift(id, positionID string, sequence int, bp db.ShiftBlueprint) db.Shift {
	shift := db.Shift{
		ID:         id,
		PositionID: positionID,
		Name:       bp.Name,
		IsAllDay:   bp.IsAllDay,
		Sequence:   sequence,
	}
	if !bp.IsAllDay {
		start, end := bp.StartTime, bp.EndTime
		shift.StartTime = &start
		shift.EndTime = &end
	}
	return shift
}

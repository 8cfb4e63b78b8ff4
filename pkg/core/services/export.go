package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jakechorley/attendant-scheduler/pkg/db"
)

const exportSheet = "Positions"

var exportHeader = []any{"Number", "Name", "Area", "Active", "Shifts", "Overseer", "Keyman", "Assignments"}

// ExportStore defines the database operations needed for the position export
type ExportStore interface {
	db.PositionStore
	db.OversightStore
	db.AssignmentStore
}

// ExportPositions writes the event's positions as an XLSX workbook and returns the row count
func ExportPositions(ctx context.Context, store ExportStore, people IdentityDirectory, logger *zap.Logger, eventID string, w io.Writer) (int, error) {
	logger.Info("Exporting positions", zap.String("event_id", eventID))

	positions, err := store.ListPositions(ctx, eventID)
	if err != nil {
		return 0, mapStoreError(err, "failed to list positions")
	}
	oversight, err := ListOversight(ctx, store, people, eventID)
	if err != nil {
		return 0, err
	}
	assignments, err := store.ListAssignments(ctx, eventID)
	if err != nil {
		return 0, mapStoreError(err, "failed to list assignments")
	}

	oversightByPosition := make(map[string]OversightView, len(oversight))
	for _, o := range oversight {
		oversightByPosition[o.PositionID] = o
	}
	assignmentCounts := make(map[string]int)
	for _, a := range assignments {
		if a.Status != db.StatusCancelled {
			assignmentCounts[a.PositionID]++
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return 0, internalError("failed to create sheet", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return 0, internalError("failed to remove default sheet", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return 0, internalError("failed to write header", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, internalError("failed to create header style", err)
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, headerStyle); err != nil {
		return 0, internalError("failed to style header", err)
	}
	if err := f.SetColWidth(exportSheet, "B", "B", 24); err != nil {
		return 0, internalError("failed to size columns", err)
	}
	if err := f.SetColWidth(exportSheet, "E", "E", 60); err != nil {
		return 0, internalError("failed to size columns", err)
	}

	for i, p := range positions {
		area := ""
		if p.Area != nil {
			area = *p.Area
		}
		var overseer, keyman string
		if o, ok := oversightByPosition[p.ID]; ok {
			if o.Overseer != nil {
				overseer = o.Overseer.DisplayName()
			}
			if o.Keyman != nil {
				keyman = o.Keyman.DisplayName()
			}
		}

		row := []any{p.PositionNumber, p.Name, area, p.IsActive, describeShifts(p.Shifts), overseer, keyman, assignmentCounts[p.ID]}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, internalError("failed to address row", err)
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return 0, internalError(fmt.Sprintf("failed to write position %d", p.PositionNumber), err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, internalError("failed to write workbook", err)
	}

	logger.Info("Positions exported",
		zap.String("event_id", eventID),
		zap.Int("rows", len(positions)))

	return len(positions), nil
}

// describeShifts renders shifts as "Name (HH:MM-HH:MM)" joined by "; "
func describeShifts(shifts []db.Shift) string {
	parts := make([]string, 0, len(shifts))
	for _, s := range shifts {
		if s.IsAllDay || s.StartTime == nil || s.EndTime == nil {
			parts = append(parts, s.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s-%s)", s.Name, *s.StartTime, *s.EndTime))
	}
	return strings.Join(parts, "; ")
}

package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/example/mentorbook/internal/application"
)

const historySheet = "Sessions"

var historyHeaders = []string{"Date", "Time", "Status", "Mentor", "Mentee", "Topic", "Meeting link", "Notes"}

// WriteHistory writes every session as one row of an xlsx workbook, in the
// order given.
func WriteHistory(w io.Writer, sessions []application.Session, names NameLookup) error {
	if names == nil {
		names = func(id string) string { return id }
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, header := range historyHeaders {
		if err := f.SetCellValue(historySheet, cell(i+1, 1), header); err != nil {
			return err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(historyHeaders))
	if err := f.SetCellStyle(historySheet, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	_ = f.SetColWidth(historySheet, "A", "C", 12)
	_ = f.SetColWidth(historySheet, "D", "F", 20)
	_ = f.SetColWidth(historySheet, "G", "H", 36)

	for i, session := range sessions {
		row := i + 2
		values := []string{
			session.Date,
			session.Time,
			string(session.Status),
			names(session.MentorID),
			names(session.MenteeID),
			session.Topic,
			session.MeetingLink,
			session.Notes,
		}
		for col, value := range values {
			if err := f.SetCellValue(historySheet, cell(col+1, row), value); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

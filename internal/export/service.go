package export

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/patrol-log/internal/entity"
)

// Service produces XLSX bytes from the consolidated dataset, for people who
// want the incident log in a spreadsheet rather than on the map.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// IncidentsXLSX returns an XLSX workbook (as bytes) for the final dataset,
// one row per incident in dataset order.
func (s *Service) IncidentsXLSX(records []entity.FinalRecord) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Incidents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet excelize creates.
	if index, _ := f.GetSheetIndex("Sheet1"); index != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Date",
		"Time",
		"Case Number",
		"Offense Type",
		"Offense Category",
		"Location",
		"Formatted Address",
		"Latitude",
		"Longitude",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range records {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.Date)
		if r.Time != nil {
			write(2, fmt.Sprintf("%02d:%02d", *r.Time/60, *r.Time%60))
		} else {
			write(2, "")
		}
		write(3, r.CaseNumber)
		write(4, r.OffenseType)
		write(5, r.OffenseCategory)
		write(6, r.Location)
		write(7, r.FormattedAddress)
		write(8, r.Latitude)
		write(9, r.Longitude)
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.xlsx.ok", "records", len(records), "bytes", buf.Len())
	return buf.Bytes(), nil
}

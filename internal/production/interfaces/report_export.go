package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"plantmeter-cloud/internal/calendar"
	"plantmeter-cloud/internal/production"
)

// ProductionReport is the export payload: the queried range and its curves.
type ProductionReport struct {
	AggregatorID string
	First        calendar.Date
	Last         calendar.Date
	Curves       []production.DailyCurve
}

// TotalWh sums every day of the report.
func (r ProductionReport) TotalWh() float64 {
	var total float64
	for _, c := range r.Curves {
		total += c.TotalWh()
	}
	return total
}

// BuildProductionPDF renders per-day production totals as a PDF table.
func BuildProductionPDF(report ProductionReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Hourly Production Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Aggregator: %s", report.AggregatorID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s to %s", report.First, report.Last))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Energy (Wh): %.1f", report.TotalWh()))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Day", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Hours", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Energy (Wh)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, c := range report.Curves {
		pdf.CellFormat(40, 6, c.Date.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", len(c.ValuesWh)), "1", 0, "R", false, 0, "")
		pdf.CellFormat(50, 6, fmt.Sprintf("%.1f", c.TotalWh()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildProductionXLSX renders the report as a workbook: a summary sheet
// plus a curves sheet with one row per day and one column per hour slot.
// Transition days simply use fewer or more columns than 24.
func BuildProductionXLSX(report ProductionReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	curvesSheet := "curves"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(curvesSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Hourly Production Report")
	_ = f.SetCellValue(summarySheet, "A3", "Aggregator")
	_ = f.SetCellValue(summarySheet, "B3", report.AggregatorID)
	_ = f.SetCellValue(summarySheet, "A4", "First Day")
	_ = f.SetCellValue(summarySheet, "B4", report.First.String())
	_ = f.SetCellValue(summarySheet, "A5", "Last Day")
	_ = f.SetCellValue(summarySheet, "B5", report.Last.String())
	_ = f.SetCellValue(summarySheet, "A6", "Days")
	_ = f.SetCellValue(summarySheet, "B6", len(report.Curves))
	_ = f.SetCellValue(summarySheet, "A7", "Total Energy (Wh)")
	_ = f.SetCellValue(summarySheet, "B7", report.TotalWh())

	_ = f.SetCellValue(curvesSheet, "A1", "Day")
	for slot := 0; slot < 25; slot++ {
		cell, err := excelize.CoordinatesToCellName(slot+2, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(curvesSheet, cell, fmt.Sprintf("Slot %d", slot))
	}
	for i, c := range report.Curves {
		row := i + 2
		_ = f.SetCellValue(curvesSheet, fmt.Sprintf("A%d", row), c.Date.String())
		for slot, value := range c.ValuesWh {
			cell, err := excelize.CoordinatesToCellName(slot+2, row)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(curvesSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

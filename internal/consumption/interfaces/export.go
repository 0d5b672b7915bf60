package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"octopus-importer/internal/consumption/application"
	"octopus-importer/internal/statstore"
)

// BuildPointsXLSX renders a series' committed cumulative points.
func BuildPointsXLSX(account, unit string, points []statstore.Point) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	pointsSheet := "points"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(pointsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Consumption Statistics")
	_ = f.SetCellValue(summarySheet, "A3", "Account")
	_ = f.SetCellValue(summarySheet, "B3", account)
	_ = f.SetCellValue(summarySheet, "A4", "Unit")
	_ = f.SetCellValue(summarySheet, "B4", unit)
	_ = f.SetCellValue(summarySheet, "A5", "Points")
	_ = f.SetCellValue(summarySheet, "B5", len(points))
	if len(points) > 0 {
		_ = f.SetCellValue(summarySheet, "A6", "Latest Sum")
		_ = f.SetCellValue(summarySheet, "B6", points[len(points)-1].Sum)
	}

	_ = f.SetCellValue(pointsSheet, "A1", "Start (UTC)")
	_ = f.SetCellValue(pointsSheet, "B1", "Cumulative Sum")
	for i, p := range points {
		row := i + 2
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("A%d", row), p.Start.Format(time.RFC3339))
		_ = f.SetCellValue(pointsSheet, fmt.Sprintf("B%d", row), p.Sum)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInvoicePDF renders the latest invoice of an account snapshot.
func BuildInvoicePDF(snapshot application.Snapshot) ([]byte, error) {
	if !snapshot.Billing.HasInvoice || snapshot.Billing.LastInvoice == nil {
		return nil, errors.New("export: no invoice available")
	}
	invoice := snapshot.Billing.LastInvoice

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Octopus Invoice")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Account: %s", snapshot.Account))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Issued: %s", invoice.Issued.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s", invoice.PeriodStart.Format("2006-01-02"), invoice.PeriodEnd.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Amount (EUR): %.2f", invoice.AmountEUR))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Solar Wallet (EUR): %.2f", snapshot.Billing.SolarWalletEUR))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Credit (EUR): %.2f", snapshot.Billing.CreditEUR))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Cumulative Consumption (kWh): %.3f", snapshot.CumulativeKWh))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

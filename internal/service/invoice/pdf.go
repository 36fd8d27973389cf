package invoice

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
)

func renderPDF(inv *Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.BookingReference, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		"Booking reference : " + inv.BookingReference,
		"Status            : " + string(inv.Status),
		"Issued            : " + inv.IssuedAt.Format("2006-01-02 15:04 MST"),
		fmt.Sprintf("Flight            : %s %s -> %s", inv.Flight.FlightNumber, inv.Flight.FromAirport, inv.Flight.ToAirport),
		"Departure         : " + inv.Flight.DepartureTime.UTC().Format("2006-01-02 15:04 MST"),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 11)
	widths := []float64{20, 60, 25, 28, 28, 29}
	for i, h := range []string{"Seat", "Passenger", "Class", "Fare", "Seat fee", "Amount"} {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range inv.Items {
		row := []string{
			item.SeatNumber,
			item.PassengerName,
			string(item.Class),
			formatCents(item.FareCents),
			formatCents(item.ModifierCents),
			formatCents(item.AmountCents),
		}
		for i, v := range row {
			align := "L"
			if i >= 3 {
				align = "R"
			}
			pdf.CellFormat(widths[i], 7, v, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total charged: "+formatCents(inv.TotalCents))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// formatCents renders minor units as a signed decimal amount.
func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

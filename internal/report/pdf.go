package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/spedec/meta"
)

// SaveDecodePDF renders the decode report into a PDF document. When the
// summary carries a digest, a QR code of it is placed on the first page.
func SaveDecodePDF(rep DecodeReport, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Decode Report", false)
	pdf.SetAuthor("spedump", false)
	pdf.SetCreator("spedump", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Decode Report")
	addDigestQR(pdf, rep.Summary.Digest)
	addSummarySection(pdf, rep)
	addRegionsSection(pdf, rep.Regions)
	addTrackFieldsSection(pdf, rep.TrackFields)
	addFindingsSection(pdf, rep.Findings)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addDigestQR(pdf *gofpdf.Fpdf, digest string) {
	if digest == "" {
		return
	}
	png, err := DigestToQR(digest, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest-qr", opts, bytes.NewReader(png))
	pageW, _ := pdf.GetPageSize()
	pdf.ImageOptions("digest-qr", pageW-45, 15, 30, 30, false, opts, 0, "")
}

func addSummarySection(pdf *gofpdf.Fpdf, rep DecodeReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "File", value: emptyFallback(rep.Summary.File, "-")},
		{label: "Format", value: rep.Summary.Version},
		{label: "Pixel Format", value: rep.Summary.PixelFormat},
		{label: "Frames", value: strconv.Itoa(rep.Summary.Frames)},
		{label: "Regions", value: strconv.Itoa(rep.Summary.Regions)},
		{label: "Errors", value: strconv.Itoa(rep.Summary.Errors)},
		{label: "Warnings", value: strconv.Itoa(rep.Summary.Warnings)},
		{label: "Overall", value: passLabel(rep.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	if rep.Summary.Digest != "" {
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(0, 4, "SHA-256 "+rep.Summary.Digest, "", "L", false)
	}
	pdf.Ln(4)
}

func addRegionsSection(pdf *gofpdf.Fpdf, rows []RegionSummary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Regions")
	pdf.Ln(9)

	headers := []string{"Name", "Size", "Binning", "Mean", "Std", "Min", "Max"}
	widths := []float64{30, 26, 22, 28, 28, 28, 28}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			row.Name,
			fmt.Sprintf("%dx%d", row.Width, row.Height),
			fmt.Sprintf("%dx%d", row.XBin, row.YBin),
			formatStat(row.Mean),
			formatStat(row.StdDev),
			formatStat(row.Min),
			formatStat(row.Max),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addTrackFieldsSection(pdf *gofpdf.Fpdf, rows []TrackFieldSummary) {
	if len(rows) == 0 {
		return
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Tracking Fields")
	pdf.Ln(9)

	headers := []string{"Name", "Type", "Bytes", "Resolution"}
	widths := []float64{76, 34, 30, 40}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			row.Name,
			row.Type,
			strconv.Itoa(row.Size),
			strconv.FormatFloat(row.Resolution, 'g', -1, 64),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []meta.Violation) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		return
	}

	for i, v := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, v.CheckId, severityLabel(v.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(v.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		if m := findingMetadata(v); m != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, m, "", "L", false)
		}

		pdf.Ln(2)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev meta.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func findingMetadata(v meta.Violation) string {
	parts := make([]string, 0, 3)
	if !v.Ts.IsZero() {
		parts = append(parts, v.Ts.Format(time.RFC3339))
	}
	if v.File != "" {
		parts = append(parts, v.File)
	}
	if v.Section != "" {
		parts = append(parts, "Section "+v.Section)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " - ")
}

package render

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/font"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
	"github.com/gigfolio/gigfolio-backend/internal/types"
)

// Renderer produces the three contract artifacts. All methods are pure
// functions of their inputs: no side effects, no network calls. The only
// non-determinism is the caller-supplied render time, which is embedded
// in the output.
type Renderer interface {
	// SigningPage renders the self-contained page published to object
	// storage. It branches only on contract status: signed contracts
	// always get the read-only page, never the submission form.
	SigningPage(contract *types.Contract, settings *types.BusinessSettings, signEndpoint string, now time.Time) ([]byte, error)

	// SignedPage renders the read-only confirmation page.
	SignedPage(contract *types.Contract, settings *types.BusinessSettings, now time.Time) ([]byte, error)

	// ContractPDF renders the canonical PDF. A nil facts argument
	// renders the unsigned variant with a signature placeholder.
	ContractPDF(contract *types.Contract, settings *types.BusinessSettings, facts *types.SignatureFacts, now time.Time) ([]byte, error)
}

type Config struct {
	// Optional TTF used to raster the typed signature strip. When empty
	// the PDF falls back to italic text.
	SignatureFontPath string
}

type renderer struct {
	log     *logger.Logger
	sigFont *truetype.Font
}

func New(log *logger.Logger, cfg Config) (Renderer, error) {
	r := &renderer{log: log.With("service", "Renderer")}

	if cfg.SignatureFontPath != "" {
		raw, err := os.ReadFile(cfg.SignatureFontPath)
		if err != nil {
			return nil, fmt.Errorf("render: load signature font: %w", err)
		}
		f, err := truetype.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("render: parse signature font: %w", err)
		}
		r.sigFont = f
	}

	return r, nil
}

func (r *renderer) ContractPDF(contract *types.Contract, settings *types.BusinessSettings, facts *types.SignatureFacts, now time.Time) ([]byte, error) {
	if contract == nil || settings == nil {
		return nil, fmt.Errorf("render: contract and settings required")
	}
	// Signed contracts always render the signed variant, whatever the
	// caller passed.
	if contract.IsSigned() && facts == nil {
		facts = contract.Signature()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	// Embedded metadata reflects the call time, keeping output a pure
	// function of the inputs. Catalog sorting removes the map-iteration
	// ordering gofpdf would otherwise leak into the bytes.
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.SetTitle(fmt.Sprintf("Performance Contract %s", contract.ContractNumber), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, settings.BusinessName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if settings.BusinessAddress != "" {
		pdf.CellFormat(0, 5, settings.BusinessAddress, "", 1, "C", false, 0, "")
	}
	contactLine := settings.BusinessEmail
	if settings.BusinessPhone != "" {
		contactLine = contactLine + "  |  " + settings.BusinessPhone
	}
	pdf.CellFormat(0, 5, contactLine, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, "PERFORMANCE CONTRACT", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract No. %s", contract.ContractNumber), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	writeRow := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(45, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 7, value, "", "L", false)
	}

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Client", "B", 1, "L", false, 0, "")
	writeRow("Name", contract.ClientName)
	writeRow("Email", contract.ClientEmail)
	if contract.ClientPhone != "" {
		writeRow("Phone", contract.ClientPhone)
	}
	if contract.ClientAddress != "" {
		writeRow("Address", contract.ClientAddress)
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Event", "B", 1, "L", false, 0, "")
	writeRow("Date", contract.EventDate.Format("Monday, 2 January 2006"))
	if contract.StartTime != "" || contract.EndTime != "" {
		writeRow("Time", fmt.Sprintf("%s - %s", contract.StartTime, contract.EndTime))
	}
	if contract.Venue != "" {
		writeRow("Venue", contract.Venue)
	}
	if contract.VenueAddress != "" {
		writeRow("Venue address", contract.VenueAddress)
	}
	writeRow("Performance fee", fmt.Sprintf("%.2f", contract.Fee))
	if contract.Deposit > 0 {
		writeRow("Deposit", fmt.Sprintf("%.2f", contract.Deposit))
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Agreement", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf(
		"The client engages %s to perform at the event detailed above. "+
			"The performance fee is payable as agreed between the parties. "+
			"Any deposit already paid is deducted from the final balance. "+
			"By signing below, the client confirms acceptance of these terms.",
		settings.BusinessName), "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Signature", "B", 1, "L", false, 0, "")
	if facts != nil {
		r.writeSignature(pdf, facts)
	} else {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Ln(10)
		pdf.CellFormat(80, 7, "Signed: ______________________________", "", 1, "L", false, 0, "")
		pdf.CellFormat(80, 7, "Date:   ______________________________", "", 1, "L", false, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s", now.Format("2 Jan 2006 15:04 MST")), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *renderer) writeSignature(pdf *gofpdf.Fpdf, facts *types.SignatureFacts) {
	if img, err := r.signatureStrip(facts.SignatureName); err == nil && img != nil {
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		name := "typed-signature"
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img))
		x := pdf.GetX()
		y := pdf.GetY()
		pdf.ImageOptions(name, x, y+2, 70, 0, false, opts, 0, "")
		pdf.SetY(y + 24)
	} else {
		pdf.SetFont("Helvetica", "I", 16)
		pdf.CellFormat(0, 12, facts.SignatureName, "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Signed by %s", facts.SignatureName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", facts.SignedAt.Format("2 Jan 2006 15:04 MST")), "", 1, "L", false, 0, "")
}

// signatureStrip rasters the typed name onto a white strip with the
// configured script font. Returns nil when no font is configured.
func (r *renderer) signatureStrip(name string) ([]byte, error) {
	if r.sigFont == nil || name == "" {
		return nil, nil
	}

	const w, h = 560, 140
	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	face := truetype.NewFace(r.sigFont, &truetype.Options{
		Size:    64,
		Hinting: font.HintingFull,
	})
	dc.SetFontFace(face)
	dc.SetColor(color.Black)

	tw, th := dc.MeasureString(name)
	scale := 1.0
	if tw > w-40 {
		scale = (w - 40) / tw
		face = truetype.NewFace(r.sigFont, &truetype.Options{
			Size:    64 * scale,
			Hinting: font.HintingFull,
		})
		dc.SetFontFace(face)
		tw, th = dc.MeasureString(name)
	}
	dc.DrawString(name, (w-tw)/2, float64(h)/2+th/2)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

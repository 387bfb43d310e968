package report

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"healthbud-backend/internal/chat"
)

type Notifier interface {
	SendMessage(chatID int64, text string) error
	SendDocument(chatID int64, fileData []byte, fileName string) error
}

// Service renders triage reports as PDF documents and escalates emergency
// assessments to the on-call Telegram chat.
type Service struct {
	notifier     Notifier
	onCallChatID int64
}

func NewService(notifier Notifier, onCallChatID int64) *Service {
	return &Service{
		notifier:     notifier,
		onCallChatID: onCallChatID,
	}
}

// Try multiple common paths (Alpine and Debian layouts).
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Render produces a PDF triage report for a stored chat.
func (s *Service) Render(rec *chat.Record) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("failed to load font for PDF, ensure ttf-dejavu is installed: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Symptom Triage Report")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", rec.RecordedAt.Format("2006-01-02 15:04 MST")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Chat: #%d  Session: %s", rec.ChatNumber, rec.SessionID))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Urgency: %s", strings.ToUpper(string(rec.Assessment.UrgencyLevel))))
	pdf.Br(15)
	if rec.Assessment.SeekCareWithin != "" {
		pdf.Cell(nil, fmt.Sprintf("Seek care within: %s", rec.Assessment.SeekCareWithin))
		pdf.Br(15)
	}
	pdf.Br(10)

	if err := writeSection(&pdf, "Patient Message", []string{rec.Message}); err != nil {
		return nil, err
	}

	var symptomLines []string
	for _, symptom := range rec.Symptoms {
		line := fmt.Sprintf("- %s (severity %d/10)", symptom.Name, symptom.Severity)
		if symptom.BodyLocation != "" {
			line += ", " + symptom.BodyLocation
		}
		symptomLines = append(symptomLines, line)
	}
	if len(symptomLines) == 0 {
		symptomLines = []string{"- No structured symptoms reported."}
	}
	if err := writeSection(&pdf, "Reported Symptoms", symptomLines); err != nil {
		return nil, err
	}

	summaryLines := []string{rec.Assessment.Summary}
	if rec.Assessment.UrgencyReason != "" {
		summaryLines = append(summaryLines, "Urgency rationale: "+rec.Assessment.UrgencyReason)
	}
	if err := writeSection(&pdf, "Assessment Summary", summaryLines); err != nil {
		return nil, err
	}

	if len(rec.Assessment.PossibleConditions) > 0 {
		if err := writeSection(&pdf, "Possible Conditions", bulleted(rec.Assessment.PossibleConditions)); err != nil {
			return nil, err
		}
	}
	if len(rec.Assessment.RedFlags) > 0 {
		if err := writeSection(&pdf, "Red Flags", bulleted(rec.Assessment.RedFlags)); err != nil {
			return nil, err
		}
	}
	if len(rec.Assessment.SpecialistTypes) > 0 {
		if err := writeSection(&pdf, "Suggested Specialists", bulleted(rec.Assessment.SpecialistTypes)); err != nil {
			return nil, err
		}
	}

	pdf.SetY(800)
	if err := pdf.SetFont("DejaVu", "", 9); err != nil {
		return nil, err
	}
	pdf.Cell(nil, rec.Assessment.SafetyDisclaimer)

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(pdf *gopdf.GoPdf, title string, lines []string) error {
	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return err
	}
	pdf.Cell(nil, title)
	pdf.Br(15)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return err
	}
	for _, line := range lines {
		wrapped, _ := pdf.SplitText(line, 500)
		for _, l := range wrapped {
			pdf.Cell(nil, l)
			pdf.Br(12)
		}
	}
	pdf.Br(15)
	return nil
}

func bulleted(items []string) []string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return lines
}

// EscalateEmergency alerts the on-call chat about an emergency-level
// assessment and attaches the PDF report. It is best-effort: failures are
// logged and never surfaced to the patient-facing request.
func (s *Service) EscalateEmergency(rec *chat.Record) {
	if s.notifier == nil || s.onCallChatID == 0 {
		return
	}
	if rec.Assessment.UrgencyLevel != chat.UrgencyEmergency {
		return
	}

	alert := fmt.Sprintf(
		"EMERGENCY triage result\nChat #%d, session %s\nReason: %s\n%s",
		rec.ChatNumber, rec.SessionID, rec.Assessment.UrgencyReason, rec.Assessment.SeekCareWithin,
	)
	if err := s.notifier.SendMessage(s.onCallChatID, alert); err != nil {
		log.Printf("failed to send emergency alert for chat %d: %v", rec.ChatNumber, err)
		return
	}

	data, err := s.Render(rec)
	if err != nil {
		log.Printf("failed to render emergency report for chat %d: %v", rec.ChatNumber, err)
		return
	}
	fileName := fmt.Sprintf("triage_report_%d_%s.pdf", rec.ChatNumber, time.Now().UTC().Format("20060102T150405"))
	if err := s.notifier.SendDocument(s.onCallChatID, data, fileName); err != nil {
		log.Printf("failed to send emergency report for chat %d: %v", rec.ChatNumber, err)
	}
}

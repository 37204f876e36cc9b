package submission

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/formhub/backend/internal/application/uow"
	"github.com/formhub/backend/internal/domain/form"
	"github.com/formhub/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a requested export format
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", "Export format must be csv or xlsx")
}

// ContentType returns the media type of files in this format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

var exportLocales = language.NewMatcher([]language.Tag{language.English, language.Ukrainian})

// ResolveLocale picks "en" or "uk" from an explicit locale and an
// Accept-Language header, in that order of preference
func ResolveLocale(requested, acceptLanguage string) string {
	tag, _ := language.MatchStrings(exportLocales, requested, acceptLanguage)
	if base, _ := tag.Base(); base.String() == "uk" {
		return "uk"
	}
	return "en"
}

type labels struct {
	FormTitle        string
	SubmittedBy      string
	Email            string
	SubmittedAt      string
	Field            string
	Value            string
	FilesUploaded    string
	NoFiles          string
	SignaturePresent string
	NoSignature      string
	NotAvailable     string
}

var translations = map[string]labels{
	"en": {
		FormTitle:        "Form Title",
		SubmittedBy:      "Submitted By",
		Email:            "Email",
		SubmittedAt:      "Submitted At",
		Field:            "Field",
		Value:            "Value",
		FilesUploaded:    "file(s) uploaded",
		NoFiles:          "No files",
		SignaturePresent: "[Digital Signature Present]",
		NoSignature:      "No signature",
		NotAvailable:     "N/A",
	},
	"uk": {
		FormTitle:        "Назва форми",
		SubmittedBy:      "Подано",
		Email:            "Електронна пошта",
		SubmittedAt:      "Дата подання",
		Field:            "Поле",
		Value:            "Значення",
		FilesUploaded:    "файл(ів) завантажено",
		NoFiles:          "Немає файлів",
		SignaturePresent: "[Цифровий підпис присутній]",
		NoSignature:      "Немає підпису",
		NotAvailable:     "Н/Д",
	},
}

// Export is a rendered submission file
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a submission as CSV or XLSX
type ExportService struct {
	queries *QueryService
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService creates an export service bound to rc
func NewExportService(rc *uow.RequestContext, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		queries: NewQueryService(rc, logger),
		logger:  logger,
		now:     time.Now,
	}
}

// Export renders the submission for an actor allowed to read it
func (s *ExportService) Export(ctx context.Context, actorID, id uuid.UUID, format Format, locale string) (*Export, error) {
	d, err := s.queries.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	tr, ok := translations[locale]
	if !ok {
		tr = translations["en"]
	}

	rows := exportRows(d, tr)
	var body []byte
	switch format {
	case FormatCSV:
		body, err = renderCSV(rows)
	case FormatXLSX:
		body, err = renderXLSX(rows)
	default:
		return nil, shared.NewDomainError("INVALID_INPUT", "Export format must be csv or xlsx")
	}
	if err != nil {
		s.logger.Error("Failed to render export",
			zap.String("submission_id", id.String()),
			zap.String("format", string(format)),
			zap.Error(err))
		return nil, err
	}

	return &Export{
		Filename:    exportFilename(d, format, s.now()),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// exportTable is the metadata block, the header and one row per form field.
// Renderers put a blank row between metadata and header.
type exportTable struct {
	Metadata [][2]string
	Header   [2]string
	Fields   [][2]string
}

func exportRows(d *Detail, tr labels) exportTable {
	userName, email := "Unknown", tr.NotAvailable
	if d.User != nil {
		userName = d.User.Name
		if d.User.Email != "" {
			email = d.User.Email
		}
	}
	title := "Unknown"
	if d.Form != nil {
		title = d.Form.Title
	}

	table := exportTable{
		Metadata: [][2]string{
			{tr.FormTitle, title},
			{tr.SubmittedBy, userName},
			{tr.Email, email},
			{tr.SubmittedAt, d.Submission.SubmittedAt.Format("2006-01-02 15:04:05")},
		},
		Header: [2]string{tr.Field, tr.Value},
	}
	if d.Form == nil {
		return table
	}

	for _, field := range d.Form.Fields {
		value, answered := d.Submission.ValueFor(field.ID)
		switch {
		case field.Type.IsUpload():
			if n := d.Submission.FileCount(field.ID); n > 0 {
				value = fmt.Sprintf("%d %s", n, tr.FilesUploaded)
			} else {
				value = tr.NoFiles
			}
		case field.Type == form.FieldTypeSignature:
			if answered && value != "" {
				value = tr.SignaturePresent
			} else {
				value = tr.NoSignature
			}
		}
		table.Fields = append(table.Fields, [2]string{field.Label, value})
	}
	return table
}

// renderCSV writes UTF-8 with a byte order mark so spreadsheet apps detect the encoding
func renderCSV(t exportTable) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("\ufeff")
	w := csv.NewWriter(&buf)
	w.UseCRLF = true

	for _, row := range t.Metadata {
		if err := w.Write(row[:]); err != nil {
			return nil, err
		}
	}
	if err := w.Write(nil); err != nil {
		return nil, err
	}
	if err := w.Write(t.Header[:]); err != nil {
		return nil, err
	}
	for _, row := range t.Fields {
		if err := w.Write(row[:]); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const xlsxSheet = "Submission"

func renderXLSX(t exportTable) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return nil, err
	}

	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	metaStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F3F4F6"}},
		Border: border,
	})
	if err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4F46E5"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}
	plainStyle, err := f.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return nil, err
	}
	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
		Border:    border,
	})
	if err != nil {
		return nil, err
	}

	row := 1
	put := func(r [2]string, labelStyle, valueStyle int) error {
		for col, v := range r {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(xlsxSheet, cell, v); err != nil {
				return err
			}
			style := labelStyle
			if col == 1 {
				style = valueStyle
			}
			if err := f.SetCellStyle(xlsxSheet, cell, cell, style); err != nil {
				return err
			}
		}
		row++
		return nil
	}

	for _, r := range t.Metadata {
		if err := put(r, metaStyle, plainStyle); err != nil {
			return nil, err
		}
	}
	row++
	if err := put(t.Header, headerStyle, headerStyle); err != nil {
		return nil, err
	}
	for _, r := range t.Fields {
		if err := put(r, plainStyle, wrapStyle); err != nil {
			return nil, err
		}
	}

	if err := f.SetColWidth(xlsxSheet, "A", "A", 30); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(xlsxSheet, "B", "B", 50); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// exportFilename is "{title}_{user}_{YYYYmmdd_HHMMSS}.{ext}"
func exportFilename(d *Detail, format Format, now time.Time) string {
	title, user := "submission", "user"
	if d.Form != nil {
		title = d.Form.Title
	}
	if d.User != nil && d.User.Name != "" {
		user = d.User.Name
	}
	return fmt.Sprintf("%s_%s_%s.%s", sanitizeFilenamePart(title), sanitizeFilenamePart(user), now.Format("20060102_150405"), format)
}

func sanitizeFilenamePart(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}

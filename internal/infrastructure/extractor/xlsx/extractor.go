package xlsx

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/chat-rag/internal/core/domain"
)

// Extractor flattens spreadsheet uploads into text: one line per row,
// cells joined with tabs, sheets separated by a heading line.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, r io.Reader) (string, domain.IngestMetadata, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return "", domain.IngestMetadata{}, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sheets := file.GetSheetList()
	for _, sheet := range sheets {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return "", domain.IngestMetadata{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Sheet: " + sheet + "\n")
		sb.WriteString(strings.Join(lines, "\n"))
	}

	meta := domain.IngestMetadata{
		FileType: "xlsx",
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Extra:    map[string]string{"sheet_count": fmt.Sprintf("%d", len(sheets))},
	}
	return sb.String(), meta, nil
}

// Package excel imports the concept catalog from spreadsheets.
package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/retention/internal/database"
	"github.com/example/retention/internal/logger"
	"github.com/example/retention/pkg/models"
)

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	LanguageID        int64  // Language every imported concept belongs to
	TitleColumn       string // Column with the word or grammar point
	KindColumn        string // Column with vocab/grammar, empty cells use the current kind
	CefrColumn        string // Column with the CEFR level, may be empty
	DescriptionColumn string
	SheetName         string // Sheet to import, the first sheet when empty
	StartRow          int    // The row to start importing from (1-based index)
	DefaultKind       string
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TitleColumn:       "A",
		KindColumn:        "B",
		CefrColumn:        "C",
		DescriptionColumn: "D",
		StartRow:          2, // skip header
		DefaultKind:       models.KindVocab,
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// Importer loads concepts into the catalog.
type Importer struct {
	concepts *database.ConceptRepository
	log      *logger.Logger
}

func NewImporter(concepts *database.ConceptRepository, baseLog *logger.Logger) *Importer {
	return &Importer{
		concepts: concepts,
		log:      baseLog.With("service", "CatalogImporter"),
	}
}

// Import reads the file, inserting new concepts and refreshing the level
// and description of existing ones. Bad rows are reported in the result
// and do not stop the import.
func (im *Importer) Import(ctx context.Context, cfg ImportConfig) (*ImportResult, error) {
	if cfg.LanguageID <= 0 {
		return nil, fmt.Errorf("language id must be positive")
	}
	if cfg.StartRow < 1 {
		cfg.StartRow = 1
	}
	if cfg.DefaultKind == "" {
		cfg.DefaultKind = models.KindVocab
	}

	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(cfg.FilePath)) == ".csv" {
		rows, err = readCSV(cfg.FilePath)
	} else {
		rows, err = readExcel(cfg.FilePath, cfg.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	kind := cfg.DefaultKind
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < cfg.StartRow {
			continue
		}
		if isBlank(row) {
			continue
		}
		// A row holding nothing but a kind name starts a section of that kind.
		if k, ok := sectionHeader(row); ok {
			kind = k
			continue
		}

		result.TotalProcessed++
		if err := im.processRow(ctx, row, cfg, kind, result); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}

	im.log.Info("catalog import finished",
		"file", cfg.FilePath,
		"language_id", cfg.LanguageID,
		"processed", result.TotalProcessed,
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)
	return result, nil
}

func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (im *Importer) processRow(ctx context.Context, row []string, cfg ImportConfig, kind string, result *ImportResult) error {
	title := cell(row, cfg.TitleColumn)
	if title == "" {
		return fmt.Errorf("title cannot be empty")
	}

	if k := strings.ToLower(cell(row, cfg.KindColumn)); k != "" {
		kind = k
	}
	if !models.IsKind(kind) {
		return fmt.Errorf("unknown kind %q", kind)
	}

	c := &models.Concept{
		LanguageID:  cfg.LanguageID,
		Kind:        kind,
		Title:       title,
		Description: cell(row, cfg.DescriptionColumn),
	}
	if level := strings.ToUpper(cell(row, cfg.CefrColumn)); level != "" {
		if !models.IsCefrLevel(level) {
			return fmt.Errorf("unknown CEFR level %q", level)
		}
		c.CefrLevel = &level
	}

	created, err := im.concepts.Upsert(ctx, c)
	if err != nil {
		return err
	}
	if created {
		result.Created++
	} else {
		result.Updated++
	}
	return nil
}

// cell returns the trimmed value of column in row, or "" when the column is
// unset or past the end of the row.
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func sectionHeader(row []string) (string, bool) {
	first := strings.ToLower(strings.Trim(strings.TrimSpace(row[0]), "\""))
	if !models.IsKind(first) {
		return "", false
	}
	for _, v := range row[1:] {
		if strings.TrimSpace(v) != "" {
			return "", false
		}
	}
	return first, true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

package vocabulary

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lingua-tutor/pkg/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ImportRow строка файла со словами
type ImportRow struct {
	Line     int
	English  string
	Russian  string
	Category string
	Level    string
}

// ImportResult итог импорта
type ImportResult struct {
	Processed  int
	Imported   int
	Categories int
	Skipped    int
	Errors     []string
}

// Catalog запись в каталог слов
type Catalog interface {
	UpsertCategory(ctx context.Context, name, level string) (*models.Category, error)
	UpsertWord(ctx context.Context, word *models.Word) error
}

// Importer загружает слова в каталог из xlsx или csv.
// Колонки: английское слово, перевод, категория, уровень. Первая строка считается
// заголовком, если в первой ячейке написано "english" или "word".
type Importer struct {
	catalog Catalog
	logger  *zap.Logger
}

// NewImporter создает импортер каталога
func NewImporter(catalog Catalog, logger *zap.Logger) *Importer {
	return &Importer{catalog: catalog, logger: logger}
}

// ImportFile читает файл и загружает слова в каталог
func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	rows, err := ReadRows(path)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, rows)
}

// Import загружает строки в каталог. Ошибки отдельных строк собираются в результат,
// ошибка хранилища прерывает импорт.
func (im *Importer) Import(ctx context.Context, rows []ImportRow) (*ImportResult, error) {
	result := &ImportResult{}
	categories := make(map[string]*int64)

	for _, row := range rows {
		result.Processed++

		english := strings.TrimSpace(row.English)
		russian := strings.TrimSpace(row.Russian)
		if english == "" || russian == "" {
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("строка %d: пустое слово или перевод", row.Line))
			continue
		}

		categoryID, err := im.category(ctx, row, categories, result)
		if err != nil {
			return result, err
		}

		word := &models.Word{
			EnglishText:        cleanWord(english),
			RussianTranslation: russian,
			CategoryID:         categoryID,
		}
		if err := im.catalog.UpsertWord(ctx, word); err != nil {
			return result, fmt.Errorf("строка %d: %w", row.Line, err)
		}
		result.Imported++
	}

	im.logger.Info("импорт слов завершен",
		zap.Int("processed", result.Processed),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("categories", result.Categories))

	return result, nil
}

func (im *Importer) category(ctx context.Context, row ImportRow, cache map[string]*int64, result *ImportResult) (*int64, error) {
	name := strings.TrimSpace(row.Category)
	if name == "" {
		return nil, nil
	}

	key := strings.ToLower(name)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	level := strings.ToUpper(strings.TrimSpace(row.Level))
	if !models.IsValidLevel(level) {
		level = models.DefaultLevel
	}

	c, err := im.catalog.UpsertCategory(ctx, name, level)
	if err != nil {
		return nil, fmt.Errorf("строка %d: %w", row.Line, err)
	}
	cache[key] = &c.ID
	result.Categories++
	return &c.ID, nil
}

// ReadRows читает строки из xlsx (все листы) или csv
func ReadRows(path string) ([]ImportRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readExcel(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия файла: %w", err)
		}
		defer f.Close()
		return readCSV(f)
	default:
		return nil, fmt.Errorf("неподдерживаемый формат файла %q: нужен .xlsx или .csv", filepath.Ext(path))
	}
}

func readExcel(path string) ([]ImportRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия xlsx: %w", err)
	}
	defer f.Close()

	var result []ImportRow
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения листа %q: %w", sheet, err)
		}
		for i, cells := range rows {
			if i == 0 && isHeader(cells) {
				continue
			}
			row := rowFromCells(cells, i+1)
			// без колонки категории категорией служит имя листа
			if row.Category == "" && len(cells) < 3 {
				row.Category = sheet
			}
			if row.English == "" && row.Russian == "" {
				continue
			}
			result = append(result, row)
		}
	}
	return result, nil
}

// readCSV читает csv; строка с одной заполненной ячейкой задает категорию для следующих строк
func readCSV(r io.Reader) ([]ImportRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		result  []ImportRow
		current string
		line    int
	)
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения csv: %w", err)
		}
		line++

		if line == 1 && isHeader(cells) {
			continue
		}
		if filled(cells) == 1 && strings.TrimSpace(cells[0]) != "" {
			current = strings.TrimSpace(cells[0])
			continue
		}

		row := rowFromCells(cells, line)
		if row.English == "" && row.Russian == "" {
			continue
		}
		if row.Category == "" {
			row.Category = current
		}
		result = append(result, row)
	}
	return result, nil
}

func rowFromCells(cells []string, line int) ImportRow {
	cell := func(i int) string {
		if i < len(cells) {
			return strings.TrimSpace(cells[i])
		}
		return ""
	}
	return ImportRow{
		Line:     line,
		English:  cell(0),
		Russian:  cell(1),
		Category: cell(2),
		Level:    cell(3),
	}
}

func isHeader(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(cells[0]))
	return first == "english" || first == "word"
}

func filled(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// cleanWord убирает пояснения в скобках: "go (went, gone)" -> "go"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

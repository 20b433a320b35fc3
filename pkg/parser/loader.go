package parser

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	_ "modernc.org/sqlite"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// Format identifies a journal table encoding
type Format string

const (
	FormatAuto    Format = "auto"
	FormatCSV     Format = "csv"
	FormatCSVGzip Format = "csv.gz"
	FormatCSVZstd Format = "csv.zst"
	FormatXLSX    Format = "xlsx"
	FormatSQLite  Format = "sqlite"
)

// DefaultSQLiteQuery reads the whole journal table of a SQLite database
const DefaultSQLiteQuery = "SELECT * FROM journal"

// ParseFormat accepts a format name from configuration
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV, FormatCSVGzip, FormatCSVZstd, FormatXLSX, FormatSQLite:
		return f, nil
	case "gzip", "gz":
		return FormatCSVGzip, nil
	case "zstd", "zst":
		return FormatCSVZstd, nil
	case "db", "sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unknown table format %q", s)
	}
}

// DetectFormat guesses the format from a file name
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".csv.gz"), strings.HasSuffix(name, ".gz"):
		return FormatCSVGzip
	case strings.HasSuffix(name, ".csv.zst"), strings.HasSuffix(name, ".zst"):
		return FormatCSVZstd
	case strings.HasSuffix(name, ".xlsx"):
		return FormatXLSX
	case strings.HasSuffix(name, ".db"), strings.HasSuffix(name, ".sqlite"), strings.HasSuffix(name, ".sqlite3"):
		return FormatSQLite
	default:
		return FormatCSV
	}
}

// LoadResult is the outcome of loading one table
type LoadResult struct {
	Source   string                         `json:"source"`
	Format   Format                         `json:"format"`
	Rows     int                            `json:"rows"`
	Entries  []models.JournalEntry          `json:"-"`
	Rejected []*models.MalformedRecordError `json:"rejected"`
}

// Accepted returns the number of rows that became entries
func (r *LoadResult) Accepted() int { return len(r.Entries) }

// Loader reads journal tables from files or streams
type Loader struct {
	logger      zerolog.Logger
	sqliteQuery string
	sheet       string
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the loader's logger
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithSQLiteQuery replaces DefaultSQLiteQuery
func WithSQLiteQuery(query string) Option {
	return func(l *Loader) {
		if strings.TrimSpace(query) != "" {
			l.sqliteQuery = query
		}
	}
}

// WithSheet picks the XLSX worksheet; the first sheet is used otherwise
func WithSheet(sheet string) Option {
	return func(l *Loader) { l.sheet = sheet }
}

// NewLoader creates a loader
func NewLoader(opts ...Option) *Loader {
	l := &Loader{logger: zerolog.Nop(), sqliteQuery: DefaultSQLiteQuery}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads a table from disk. FormatAuto picks the format from the
// file extension.
func (l *Loader) LoadFile(ctx context.Context, path string, format Format) (*LoadResult, error) {
	if format == "" || format == FormatAuto {
		format = DetectFormat(path)
	}

	var (
		result *LoadResult
		err    error
	)
	if format == FormatSQLite {
		result, err = l.loadSQLite(ctx, path)
	} else {
		var file *os.File
		file, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal table: %w", err)
		}
		defer file.Close()
		result, err = l.Load(ctx, bufio.NewReader(file), format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	result.Source = path
	return result, nil
}

// Load reads a table from a stream. SQLite databases need random access and
// are only supported through LoadFile.
func (l *Loader) Load(ctx context.Context, r io.Reader, format Format) (*LoadResult, error) {
	switch format {
	case FormatCSV, FormatAuto, "":
		return l.loadCSV(ctx, r, FormatCSV)
	case FormatCSVGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		return l.loadCSV(ctx, gz, FormatCSVGzip)
	case FormatCSVZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer decoder.Close()
		return l.loadCSV(ctx, decoder, FormatCSVZstd)
	case FormatXLSX:
		return l.loadXLSX(ctx, r)
	case FormatSQLite:
		return nil, errors.New("sqlite tables must be loaded with LoadFile")
	default:
		return nil, fmt.Errorf("unknown table format %q", format)
	}
}

// LoadRows parses an in-memory table whose first row is the header.
func (l *Loader) LoadRows(ctx context.Context, rows [][]string) (*LoadResult, error) {
	return l.parseRows(ctx, rows, "")
}

func (l *Loader) parseRows(ctx context.Context, rows [][]string, format Format) (*LoadResult, error) {
	if len(rows) == 0 {
		return nil, errors.New("journal table is empty")
	}
	schema, err := ResolveHeader(rows[0])
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Format: format}
	for i, row := range rows[1:] {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		l.addRow(result, schema, row, i+1)
	}
	l.logResult(result)
	return result, nil
}

func (l *Loader) addRow(result *LoadResult, schema *Schema, row []string, rowNum int) {
	if blank(row) {
		return
	}
	result.Rows++
	entry, bad := schema.Parse(row, rowNum)
	if bad != nil {
		l.logger.Debug().Int("row", rowNum).Str("field", bad.Field).Msg(bad.Message)
		result.Rejected = append(result.Rejected, bad)
		return
	}
	result.Entries = append(result.Entries, entry)
}

func (l *Loader) logResult(result *LoadResult) {
	event := l.logger.Info()
	if len(result.Rejected) > 0 {
		event = l.logger.Warn()
	}
	event.
		Str("format", string(result.Format)).
		Int("rows", result.Rows).
		Int("accepted", len(result.Entries)).
		Int("rejected", len(result.Rejected)).
		Msg("Journal table loaded")
}

func (l *Loader) loadCSV(ctx context.Context, r io.Reader, format Format) (*LoadResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("journal table is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	schema, err := ResolveHeader(header)
	if err != nil {
		return nil, err
	}

	result := &LoadResult{Format: format}
	for rowNum := 1; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.Rows++
				result.Rejected = append(result.Rejected, &models.MalformedRecordError{
					Row: rowNum, Field: "record", Message: perr.Err.Error(),
				})
				continue
			}
			return nil, fmt.Errorf("failed to read row %d: %w", rowNum, err)
		}
		if rowNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		l.addRow(result, schema, row, rowNum)
	}

	l.logResult(result)
	return result, nil
}

func (l *Loader) loadXLSX(ctx context.Context, r io.Reader) (*LoadResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := l.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	return l.parseRows(ctx, rows, FormatXLSX)
}

func (l *Loader) loadSQLite(ctx context.Context, path string) (*LoadResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, l.sqliteQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal table: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	table := [][]string{columns}
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", len(table), err)
		}
		row := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				row[i] = v.String
			}
		}
		table = append(table, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal table: %w", err)
	}

	return l.parseRows(ctx, table, FormatSQLite)
}

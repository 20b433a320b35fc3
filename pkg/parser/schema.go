// Package parser loads journal tables into typed entries. Every row is checked
// against a fixed schema; rows that fail are reported as MalformedRecordError
// and skipped, never failing the whole table.
package parser

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

// Column is a canonical journal column
type Column string

const (
	ColumnHiker     Column = "hiker_id"
	ColumnTimestamp Column = "timestamp"
	ColumnLatitude  Column = "latitude"
	ColumnLongitude Column = "longitude"
	ColumnMentions  Column = "mentions"
)

var requiredColumns = []Column{ColumnHiker, ColumnTimestamp, ColumnLatitude, ColumnLongitude}

// Header spellings seen in exported journal tables
var columnAliases = map[string]Column{
	"hiker trail name":    ColumnHiker,
	"hiker":               ColumnHiker,
	"hiker_id":            ColumnHiker,
	"trail name":          ColumnHiker,
	"date":                ColumnTimestamp,
	"timestamp":           ColumnTimestamp,
	"latitude":            ColumnLatitude,
	"lat":                 ColumnLatitude,
	"longitude":           ColumnLongitude,
	"lon":                 ColumnLongitude,
	"lng":                 ColumnLongitude,
	"mentioned hikers":    ColumnMentions,
	"mentions":            ColumnMentions,
	"mentioned_hiker_ids": ColumnMentions,
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"1/2/06",
	"01-02-06",
	"Jan 2, 2006",
}

// record is one raw row after column mapping
type record struct {
	HikerID   string `json:"hiker_id" validate:"required,hiker_id"`
	Timestamp string `json:"timestamp" validate:"required"`
	Latitude  string `json:"latitude" validate:"required,latitude"`
	Longitude string `json:"longitude" validate:"required,longitude"`
	Mentions  string `json:"mentions"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	// A name made only of digits and punctuation normalizes to nothing.
	_ = v.RegisterValidation("hiker_id", func(fl validator.FieldLevel) bool {
		return models.NormalizeHikerID(fl.Field().String()) != ""
	})
	return v
}

// MissingColumnsError is returned when a table header lacks required columns.
// Unlike row errors it is fatal for the table.
type MissingColumnsError struct {
	Missing []Column
	Header  []string
}

func (e *MissingColumnsError) Error() string {
	names := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		names[i] = string(c)
	}
	return fmt.Sprintf("journal table is missing required columns: %s", strings.Join(names, ", "))
}

// Schema maps canonical columns to positions in one table
type Schema struct {
	index    map[Column]int
	validate *validator.Validate
}

// ResolveHeader matches header cells against the known column spellings.
// Matching ignores case and surrounding whitespace. The first matching cell
// wins when a table repeats a column.
func ResolveHeader(header []string) (*Schema, error) {
	s := &Schema{index: make(map[Column]int), validate: newValidator()}
	for i, cell := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
		col, ok := columnAliases[name]
		if !ok {
			continue
		}
		if _, seen := s.index[col]; !seen {
			s.index[col] = i
		}
	}

	var missing []Column
	for _, c := range requiredColumns {
		if _, ok := s.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing, Header: header}
	}
	return s, nil
}

// HasMentions reports whether the table carries a mentions column
func (s *Schema) HasMentions() bool {
	_, ok := s.index[ColumnMentions]
	return ok
}

func (s *Schema) cell(row []string, c Column) string {
	i, ok := s.index[c]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// Parse converts one data row. rowNum is the 1-based data row used in errors.
func (s *Schema) Parse(row []string, rowNum int) (models.JournalEntry, *models.MalformedRecordError) {
	rec := record{
		HikerID:   s.cell(row, ColumnHiker),
		Timestamp: s.cell(row, ColumnTimestamp),
		Latitude:  s.cell(row, ColumnLatitude),
		Longitude: s.cell(row, ColumnLongitude),
		Mentions:  s.cell(row, ColumnMentions),
	}

	if err := s.validate.Struct(rec); err != nil {
		return models.JournalEntry{}, toMalformed(err, rowNum)
	}

	ts, err := ParseTimestamp(rec.Timestamp)
	if err != nil {
		return models.JournalEntry{}, &models.MalformedRecordError{
			Row: rowNum, Field: string(ColumnTimestamp), Message: "unrecognized date format", Value: rec.Timestamp,
		}
	}
	lat, err := strconv.ParseFloat(rec.Latitude, 64)
	if err != nil {
		return models.JournalEntry{}, &models.MalformedRecordError{
			Row: rowNum, Field: string(ColumnLatitude), Message: "not a number", Value: rec.Latitude,
		}
	}
	lon, err := strconv.ParseFloat(rec.Longitude, 64)
	if err != nil {
		return models.JournalEntry{}, &models.MalformedRecordError{
			Row: rowNum, Field: string(ColumnLongitude), Message: "not a number", Value: rec.Longitude,
		}
	}

	entry := models.JournalEntry{
		HikerID:   rec.HikerID,
		Timestamp: ts,
		Latitude:  lat,
		Longitude: lon,
		Mentions:  SplitMentions(rec.Mentions),
	}
	if err := entry.Validate(); err != nil {
		if m, ok := err.(*models.MalformedRecordError); ok {
			m.Row = rowNum
			return models.JournalEntry{}, m
		}
		return models.JournalEntry{}, &models.MalformedRecordError{Row: rowNum, Field: "record", Message: err.Error()}
	}
	return entry, nil
}

func toMalformed(err error, rowNum int) *models.MalformedRecordError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &models.MalformedRecordError{Row: rowNum, Field: "record", Message: err.Error()}
	}

	fe := verrs[0]
	msg := "invalid value"
	switch fe.Tag() {
	case "required":
		msg = "required field is empty"
	case "latitude":
		msg = "latitude must be a number in [-90, 90]"
	case "longitude":
		msg = "longitude must be a number in [-180, 180]"
	case "hiker_id":
		msg = "hiker id has no letters"
	}
	return &models.MalformedRecordError{Row: rowNum, Field: fe.Field(), Message: msg, Value: fmt.Sprint(fe.Value())}
}

// ParseTimestamp accepts the date spellings found in journal exports, plus
// bare spreadsheet serial day numbers. Results are in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// SplitMentions splits a mentions cell on commas or semicolons. Bracketed
// list syntax with quoted names is tolerated.
func SplitMentions(raw string) []string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

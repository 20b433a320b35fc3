package parser

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gilchrisn/trail-community-service/pkg/models"
)

const journalCSV = `Hiker Trail Name,date,Latitude,Longitude,Mentioned Hikers
Sunshine,2021-03-01,34.62,-84.19,"Mountain Goat, Pathfinder"
  mountain goat ,2021-03-02 08:15:00,34.70,-84.10,sunshine
Pathfinder,03/05/2021,34.80,-84.00,
,2021-03-06,34.80,-84.00,
Sunshine,not a date,34.80,-84.00,
Sunshine,2021-03-07,134.80,-84.00,
1234,2021-03-07,34.80,-84.00,

Sunshine,2022-04-01,35.00,-83.00,['Pathfinder'; 'Ghost']
`

func TestLoadCSV(t *testing.T) {
	result, err := NewLoader().Load(context.Background(), strings.NewReader(journalCSV), FormatCSV)
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, result.Format)
	assert.Equal(t, 8, result.Rows)
	require.Equal(t, 4, result.Accepted())
	require.Len(t, result.Rejected, 4)

	first := result.Entries[0]
	assert.Equal(t, "Sunshine", first.HikerID)
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), first.Timestamp)
	assert.InDelta(t, 34.62, first.Latitude, 1e-12)
	assert.Equal(t, []string{"Mountain Goat", "Pathfinder"}, first.Mentions)
	assert.Equal(t, []string{"mountaingoat", "pathfinder"}, first.NormalizedMentions())

	assert.Equal(t, "mountaingoat", result.Entries[1].NormalizedHikerID())
	assert.Equal(t, 8, result.Entries[1].Timestamp.Hour())
	assert.Empty(t, result.Entries[2].Mentions)
	assert.Equal(t, []string{"Pathfinder", "Ghost"}, result.Entries[3].Mentions)

	fields := make([]string, len(result.Rejected))
	for i, r := range result.Rejected {
		fields[i] = r.Field
		assert.True(t, errors.Is(r, models.ErrMalformedRecord))
	}
	assert.Equal(t, []string{"hiker_id", "timestamp", "latitude", "hiker_id"}, fields)
	assert.Equal(t, 4, result.Rejected[0].Row)
	assert.Equal(t, 7, result.Rejected[3].Row)
}

func TestLoadMissingColumns(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), strings.NewReader("hiker,date\nx,2021-01-01\n"), FormatCSV)
	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []Column{ColumnLatitude, ColumnLongitude}, missing.Missing)

	_, err = NewLoader().Load(context.Background(), strings.NewReader(""), FormatCSV)
	assert.Error(t, err)
}

func TestLoadCompressed(t *testing.T) {
	t.Run("gzip", func(t *testing.T) {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, err := gz.Write([]byte(journalCSV))
		require.NoError(t, err)
		require.NoError(t, gz.Close())

		path := filepath.Join(t.TempDir(), "journal.csv.gz")
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

		result, err := NewLoader().LoadFile(context.Background(), path, FormatAuto)
		require.NoError(t, err)
		assert.Equal(t, FormatCSVGzip, result.Format)
		assert.Equal(t, path, result.Source)
		assert.Equal(t, 4, result.Accepted())
	})

	t.Run("zstd", func(t *testing.T) {
		encoder, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		compressed := encoder.EncodeAll([]byte(journalCSV), nil)
		require.NoError(t, encoder.Close())

		result, err := NewLoader().Load(context.Background(), bytes.NewReader(compressed), FormatCSVZstd)
		require.NoError(t, err)
		assert.Equal(t, 4, result.Accepted())
	})
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows := [][]interface{}{
		{"Hiker", "Timestamp", "Lat", "Lng", "Mentions"},
		{"Sunshine", "2021-03-01", 34.62, -84.19, "Pathfinder"},
		{"Pathfinder", "2021-03-02", 34.70, -84.10, ""},
		{"Ghost", "2021-03-03", "north", -84.10, ""},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := NewLoader().Load(context.Background(), bytes.NewReader(buf.Bytes()), FormatXLSX)
	require.NoError(t, err)

	assert.Equal(t, FormatXLSX, result.Format)
	require.Equal(t, 2, result.Accepted())
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "latitude", result.Rejected[0].Field)
	assert.Equal(t, 3, result.Rejected[0].Row)
	assert.InDelta(t, -84.19, result.Entries[0].Longitude, 1e-9)

	_, err = NewLoader(WithSheet("Missing")).Load(context.Background(), bytes.NewReader(buf.Bytes()), FormatXLSX)
	assert.Error(t, err)
}

func TestLoadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TABLE journal (hiker_id TEXT, timestamp TEXT, latitude REAL, longitude REAL, mentions TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO journal VALUES
		('Sunshine', '2021-03-01', 34.62, -84.19, 'Pathfinder'),
		('Pathfinder', '2021-03-02', 34.70, -84.10, NULL),
		('Ghost', NULL, 34.70, -84.10, NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	result, err := NewLoader().LoadFile(context.Background(), path, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, FormatSQLite, result.Format)
	assert.Equal(t, 2, result.Accepted())
	require.Len(t, result.Rejected, 1)
	assert.Equal(t, "timestamp", result.Rejected[0].Field)

	filtered, err := NewLoader(WithSQLiteQuery("SELECT * FROM journal WHERE hiker_id = 'Sunshine'")).
		LoadFile(context.Background(), path, FormatSQLite)
	require.NoError(t, err)
	assert.Equal(t, 1, filtered.Accepted())

	_, err = NewLoader().Load(context.Background(), strings.NewReader(""), FormatSQLite)
	assert.Error(t, err)
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader().LoadRows(ctx, [][]string{{"hiker", "date", "lat", "lon"}, {"a", "2021-01-01", "1", "1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2021-03-01", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2021-03-01T10:00:00Z", time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2021-03-01 10:00:00", time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"3/1/2021", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"03-01-21", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"44256", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestFormats(t *testing.T) {
	assert.Equal(t, FormatCSVGzip, DetectFormat("/data/journal.csv.gz"))
	assert.Equal(t, FormatCSVZstd, DetectFormat("journal.csv.zst"))
	assert.Equal(t, FormatXLSX, DetectFormat("Journal.XLSX"))
	assert.Equal(t, FormatSQLite, DetectFormat("journal.sqlite"))
	assert.Equal(t, FormatCSV, DetectFormat("journal.txt"))

	f, err := ParseFormat("GZ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSVGzip, f)
	_, err = ParseFormat("parquet")
	assert.Error(t, err)
}

func TestSplitMentions(t *testing.T) {
	assert.Nil(t, SplitMentions(""))
	assert.Nil(t, SplitMentions("[]"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitMentions("a, b;c"))
	assert.Equal(t, []string{"Mountain Goat"}, SplitMentions(`["Mountain Goat"]`))
}

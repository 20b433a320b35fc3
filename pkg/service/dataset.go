// Package service keeps the uploaded journal tables of a running server and
// the analyzer bound to each of them.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/trail-community-service/pkg/metrics"
	"github.com/gilchrisn/trail-community-service/pkg/models"
	"github.com/gilchrisn/trail-community-service/pkg/parser"
	"github.com/gilchrisn/trail-community-service/pkg/pipeline"
)

// ErrDatasetNotFound is wrapped by lookups of unknown dataset ids
var ErrDatasetNotFound = errors.New("dataset not found")

// maxRejectedSamples caps the rejected rows kept on a dataset for display
const maxRejectedSamples = 100

// Dataset is one loaded journal table
type Dataset struct {
	ID            string                         `json:"id"`
	Name          string                         `json:"name"`
	Source        string                         `json:"source"`
	Format        parser.Format                  `json:"format"`
	Rows          int                            `json:"rows"`
	Accepted      int                            `json:"accepted"`
	RejectedCount int                            `json:"rejected_count"`
	Rejected      []*models.MalformedRecordError `json:"rejected,omitempty"`
	Years         []int                          `json:"years"`
	CreatedAt     time.Time                      `json:"created_at"`

	analyzer *pipeline.Analyzer
}

// DatasetService handles dataset operations
type DatasetService struct {
	datasets map[string]*Dataset
	mutex    sync.RWMutex

	loaderOpts   []parser.Option
	analyzerOpts []pipeline.Option
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// Option configures a DatasetService
type Option func(*DatasetService)

// WithLoaderOptions sets the options of every table load
func WithLoaderOptions(opts ...parser.Option) Option {
	return func(s *DatasetService) { s.loaderOpts = append(s.loaderOpts, opts...) }
}

// WithAnalyzerOptions sets the options of every dataset analyzer
func WithAnalyzerOptions(opts ...pipeline.Option) Option {
	return func(s *DatasetService) { s.analyzerOpts = append(s.analyzerOpts, opts...) }
}

// WithMetrics records loads and analyses
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DatasetService) { s.metrics = m }
}

// WithLogger sets the service logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *DatasetService) { s.logger = logger }
}

// NewDatasetService creates a new dataset service
func NewDatasetService(opts ...Option) *DatasetService {
	s := &DatasetService{
		datasets: make(map[string]*Dataset),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload loads a journal table from a stream. FormatAuto picks the format
// from filename. SQLite uploads are spooled to a temporary file first.
func (s *DatasetService) Upload(ctx context.Context, name, filename string, r io.Reader, format parser.Format) (*Dataset, error) {
	if format == "" || format == parser.FormatAuto {
		format = parser.DetectFormat(filename)
	}

	s.logger.Info().
		Str("name", name).
		Str("filename", filename).
		Str("format", string(format)).
		Msg("Starting dataset upload")

	var (
		result *parser.LoadResult
		err    error
	)
	if format == parser.FormatSQLite {
		result, err = s.loadSpooled(ctx, r)
	} else {
		result, err = s.loader().Load(ctx, r, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filename, err)
	}
	result.Source = filename

	return s.register(name, result), nil
}

// LoadFile loads a journal table from disk
func (s *DatasetService) LoadFile(ctx context.Context, name, path string, format parser.Format) (*Dataset, error) {
	result, err := s.loader().LoadFile(ctx, path, format)
	if err != nil {
		return nil, err
	}
	return s.register(name, result), nil
}

func (s *DatasetService) loader() *parser.Loader {
	opts := append([]parser.Option{parser.WithLogger(s.logger)}, s.loaderOpts...)
	return parser.NewLoader(opts...)
}

func (s *DatasetService) loadSpooled(ctx context.Context, r io.Reader) (*parser.LoadResult, error) {
	tmp, err := os.CreateTemp("", "journal-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	return s.loader().LoadFile(ctx, tmp.Name(), parser.FormatSQLite)
}

func (s *DatasetService) register(name string, result *parser.LoadResult) *Dataset {
	if strings.TrimSpace(name) == "" {
		name = "Unnamed Dataset"
	}

	analyzerOpts := append([]pipeline.Option{pipeline.WithLogger(s.logger)}, s.analyzerOpts...)
	if s.metrics != nil {
		analyzerOpts = append(analyzerOpts, pipeline.WithObserver(s.metrics))
	}

	dataset := &Dataset{
		ID:            uuid.New().String(),
		Name:          name,
		Source:        result.Source,
		Format:        result.Format,
		Rows:          result.Rows,
		Accepted:      result.Accepted(),
		RejectedCount: len(result.Rejected),
		Rejected:      result.Rejected,
		Years:         models.Years(result.Entries),
		CreatedAt:     time.Now(),
		analyzer:      pipeline.NewAnalyzer(pipeline.Table(result.Entries), analyzerOpts...),
	}
	if len(dataset.Rejected) > maxRejectedSamples {
		dataset.Rejected = dataset.Rejected[:maxRejectedSamples]
	}
	s.metrics.RecordLoad(string(result.Format), result.Accepted(), result.Rejected)

	s.mutex.Lock()
	s.datasets[dataset.ID] = dataset
	s.mutex.Unlock()

	s.logger.Info().
		Str("dataset_id", dataset.ID).
		Str("name", dataset.Name).
		Int("accepted", dataset.Accepted).
		Int("rejected", dataset.RejectedCount).
		Ints("years", dataset.Years).
		Msg("Dataset upload complete")

	return dataset
}

// Get retrieves a dataset by ID
func (s *DatasetService) Get(datasetID string) (*Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	dataset, exists := s.datasets[datasetID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}
	return dataset, nil
}

// Analyzer returns the analyzer bound to a dataset
func (s *DatasetService) Analyzer(datasetID string) (*pipeline.Analyzer, error) {
	dataset, err := s.Get(datasetID)
	if err != nil {
		return nil, err
	}
	return dataset.analyzer, nil
}

// List returns all datasets, oldest first
func (s *DatasetService) List() []*Dataset {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	datasets := make([]*Dataset, 0, len(s.datasets))
	for _, dataset := range s.datasets {
		datasets = append(datasets, dataset)
	}
	sort.Slice(datasets, func(i, j int) bool {
		if !datasets[i].CreatedAt.Equal(datasets[j].CreatedAt) {
			return datasets[i].CreatedAt.Before(datasets[j].CreatedAt)
		}
		return datasets[i].ID < datasets[j].ID
	})
	return datasets
}

// Delete removes a dataset
func (s *DatasetService) Delete(datasetID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.datasets[datasetID]; !exists {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}
	delete(s.datasets, datasetID)

	s.logger.Info().Str("dataset_id", datasetID).Msg("Dataset deleted")
	return nil
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/gilchrisn/trail-community-service/pkg/parser"
	"github.com/gilchrisn/trail-community-service/pkg/service"
	"github.com/gilchrisn/trail-community-service/pkg/validation"
)

// modularityTolerance bounds the gap between the detector's modularity and
// the independent recomputation before a warning is logged.
const modularityTolerance = 1e-6

// Handlers contains HTTP request handlers
type Handlers struct {
	datasets       *service.DatasetService
	validate       *validator.Validate
	defaultYears   []int
	maxUploadBytes int64
	startedAt      time.Time
}

// NewHandlers creates new API handlers. defaultYears is used by the trend
// endpoint when the request names none.
func NewHandlers(datasets *service.DatasetService, defaultYears []int, maxUploadBytes int64) *Handlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 << 20
	}
	return &Handlers{
		datasets:       datasets,
		validate:       newRequestValidator(),
		defaultYears:   defaultYears,
		maxUploadBytes: maxUploadBytes,
		startedAt:      time.Now(),
	}
}

// HealthCheck reports liveness
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, r, "Service is healthy", map[string]interface{}{
		"status":   "healthy",
		"datasets": len(h.datasets.List()),
		"uptime":   time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// UploadDataset loads a journal table sent as multipart field "file"
func (h *Handlers) UploadDataset(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	logger.Info().Msg("Dataset upload request received")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		logger.Error().Err(err).Msg("Failed to parse multipart form")
		WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid multipart form", err)
		return
	}

	req := uploadRequest{Name: r.FormValue("name"), Format: r.FormValue("format")}
	if err := h.validate.Struct(req); err != nil {
		writeRequestError(w, r, err)
		return
	}
	format, err := parser.ParseFormat(req.Format)
	if err != nil {
		WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid format", err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Error().Err(err).Msg("Missing journal file")
		WriteErrorResponse(w, r, http.StatusBadRequest, "Missing required file: file", err)
		return
	}
	defer file.Close()

	name := req.Name
	if name == "" {
		name = header.Filename
	}
	dataset, err := h.datasets.Upload(r.Context(), name, header.Filename, file, format)
	if err != nil {
		logger.Error().Err(err).Msg("Dataset upload failed")
		var missing *parser.MissingColumnsError
		if errors.As(err, &missing) {
			WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid journal table", err)
			return
		}
		WriteErrorResponse(w, r, http.StatusUnprocessableEntity, "Dataset upload failed", err)
		return
	}

	logger.Info().
		Str("dataset_id", dataset.ID).
		Str("name", dataset.Name).
		Msg("Dataset uploaded successfully")
	WriteSuccessResponse(w, r, "Dataset uploaded successfully", dataset)
}

// ListDatasets lists all datasets
func (h *Handlers) ListDatasets(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, r, "Datasets retrieved successfully", h.datasets.List())
}

// GetDataset retrieves a specific dataset
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.datasets.Get(mux.Vars(r)["datasetId"])
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Dataset retrieved successfully", dataset)
}

// DeleteDataset deletes a dataset
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.datasets.Delete(mux.Vars(r)["datasetId"]); err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Dataset deleted successfully", nil)
}

// ListYears lists the years a dataset has entries for
func (h *Handlers) ListYears(w http.ResponseWriter, r *http.Request) {
	dataset, err := h.datasets.Get(mux.Vars(r)["datasetId"])
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Years retrieved successfully", dataset.Years)
}

// communitiesResponse is the partition of one year
type communitiesResponse struct {
	Year                int        `json:"year"`
	NumHikers           int        `json:"num_hikers"`
	NumEdges            int        `json:"num_edges"`
	NumCommunities      int        `json:"num_communities"`
	Modularity          float64    `json:"modularity"`
	SingletonModularity float64    `json:"singleton_modularity"`
	Communities         [][]string `json:"communities"`
}

// GetCommunities returns the community partition of a year
func (h *Handlers) GetCommunities(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseYearRequest(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	analyzer, err := h.datasets.Analyzer(req.DatasetID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	g, assignment, err := analyzer.Communities(req.Year)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	if err := validation.CrossCheckModularity(g, assignment, modularityTolerance); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Int("year", req.Year).Msg("Modularity cross-check failed")
	}

	WriteSuccessResponse(w, r, "Communities retrieved successfully", communitiesResponse{
		Year:                req.Year,
		NumHikers:           g.NumNodes(),
		NumEdges:            g.NumEdges(),
		NumCommunities:      assignment.NumCommunities(),
		Modularity:          assignment.Modularity,
		SingletonModularity: validation.SingletonModularity(g),
		Communities:         assignment.Partition(),
	})
}

// GetStatistics returns the community statistics of a year
func (h *Handlers) GetStatistics(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseYearRequest(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	analyzer, err := h.datasets.Analyzer(req.DatasetID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	summary, err := analyzer.Statistics(req.Year)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Statistics retrieved successfully", summary)
}

// GetGraph returns the mention graph of a year. Hiker ids are replaced by
// anonymous labels unless ?reveal=true.
func (h *Handlers) GetGraph(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseYearRequest(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	reveal := false
	if raw := r.URL.Query().Get("reveal"); raw != "" {
		if reveal, err = strconv.ParseBool(raw); err != nil {
			WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid reveal flag", err)
			return
		}
	}
	analyzer, err := h.datasets.Analyzer(req.DatasetID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	export, err := analyzer.Graph(req.Year, reveal)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Graph retrieved successfully", export)
}

// GetFrames returns the animation frames of one community
func (h *Handlers) GetFrames(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseFramesRequest(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	analyzer, err := h.datasets.Analyzer(req.DatasetID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	fs, err := analyzer.Frames(req.Year, req.CommunityID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Frames retrieved successfully", fs)
}

// GetTrajectories returns the sampled path of every hiker of a year
func (h *Handlers) GetTrajectories(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseYearRequest(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	analyzer, err := h.datasets.Analyzer(req.DatasetID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	paths, err := analyzer.Trajectories(req.Year)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Trajectories retrieved successfully", paths)
}

// GetTrend compares the community structure across years
func (h *Handlers) GetTrend(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseTrendRequest(r)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	dataset, err := h.datasets.Get(req.DatasetID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	years := req.Years
	if len(years) == 0 {
		years = h.defaultYears
	}
	if len(years) == 0 {
		years = dataset.Years
	}

	analyzer, err := h.datasets.Analyzer(req.DatasetID)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	trend, err := analyzer.Trend(r.Context(), years)
	if err != nil {
		writeAnalysisError(w, r, err)
		return
	}
	WriteSuccessResponse(w, r, "Trend retrieved successfully", trend)
}

// writeRequestError answers a request that failed parsing or validation
func writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		WriteValidationErrorResponse(w, r, "Invalid request", fieldErrors(invalid))
		return
	}
	WriteErrorResponse(w, r, http.StatusBadRequest, "Invalid request", err)
}

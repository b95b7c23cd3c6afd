package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/banshee-data/exoquest/internal/batch"
	"github.com/banshee-data/exoquest/internal/catalog"
	"github.com/banshee-data/exoquest/internal/db"
	"github.com/banshee-data/exoquest/internal/dispatch"
	"github.com/banshee-data/exoquest/internal/httputil"
	"github.com/banshee-data/exoquest/internal/monitoring"
	"github.com/banshee-data/exoquest/internal/results"
	"github.com/banshee-data/exoquest/internal/version"
)

// Form field and error messages of the predict endpoint.
const (
	FieldFile  = "file"
	FieldModel = "model"

	msgNoFile       = "No file uploaded"
	msgNoModel      = "Model type not provided"
	msgNoFileName   = "No file selected"
	msgNotCSV       = "Only CSV files are allowed"
	msgInvalidModel = "Invalid model type"
)

// multipartMemory is how much of an upload is held in memory before
// spilling to a temporary file.
const multipartMemory = 4 << 20

// HealthResponse is returned by /api/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}

// PredictResponse is returned by a successful /api/predict.
type PredictResponse struct {
	Success   bool                       `json:"success"`
	Results   []results.PredictionResult `json:"results"`
	Total     int                        `json:"total"`
	ModelUsed string                     `json:"model_used"`
	RunID     string                     `json:"run_id"`
	// Demo marks output of the untrained demo variant.
	Demo        bool     `json:"demo"`
	Synthesized []string `json:"synthesized,omitempty"`
}

// ModelInfo is one entry of /api/models.
type ModelInfo struct {
	dispatch.Status
	State string `json:"status"`
}

// RunsResponse is returned by /api/runs.
type RunsResponse struct {
	Runs   []db.RunRecord `json:"runs"`
	Totals map[string]int `json:"totals"`
}

// ReloadResponse is returned by /api/admin/reload.
type ReloadResponse struct {
	Available []catalog.ID          `json:"available"`
	Failures  map[catalog.ID]string `json:"failures,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, HealthResponse{Status: "healthy", Message: "ExoQuest API is running", Version: version.String()})
}

// formFile returns the uploaded file part. It distinguishes a part sent with
// an empty filename, which the multipart reader files under Value.
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, string) {
	f, hdr, err := r.FormFile(FieldFile)
	if err == nil {
		return f, hdr, ""
	}
	if r.MultipartForm != nil {
		if _, ok := r.MultipartForm.Value[FieldFile]; ok {
			return nil, nil, msgNoFileName
		}
	}
	return nil, nil, msgNoFile
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, err)
			return
		}
		httputil.BadRequest(w, msgNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, hdr, msg := formFile(r)
	model := strings.TrimSpace(r.FormValue(FieldModel))
	switch {
	case msg == msgNoFile:
		httputil.BadRequest(w, msg)
		return
	case model == "":
		httputil.BadRequest(w, msgNoModel)
		return
	case msg != "":
		httputil.BadRequest(w, msg)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(hdr.Filename), ".csv") {
		httputil.BadRequest(w, msgNotCSV)
		return
	}
	if _, err := s.dispatcher.Bundle(model); err != nil {
		var unknown *catalog.UnknownCatalogError
		if errors.As(err, &unknown) {
			httputil.BadRequest(w, msgInvalidModel)
			return
		}
		httputil.WriteError(w, err)
		return
	}

	b, err := batch.ReadCSV(file)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid CSV: %v", err))
		return
	}
	run, err := s.dispatcher.Run(r.Context(), model, b)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.record(run)

	httputil.WriteJSONOK(w, PredictResponse{
		Success:     true,
		Results:     run.Results,
		Total:       run.Total(),
		ModelUsed:   run.Catalog.String(),
		RunID:       run.ID.String(),
		Demo:        run.Demo,
		Synthesized: run.Synthesized,
	})
}

// record stores a run summary. Failures are logged; the prediction has
// already succeeded.
func (s *Server) record(run *dispatch.Run) {
	if s.db == nil {
		return
	}
	err := s.db.RecordRun(db.RunRecord{
		RunID:       run.ID.String(),
		Catalog:     run.Catalog.String(),
		Demo:        run.Demo,
		Total:       run.Total(),
		Counts:      results.Tally(run.Results),
		Synthesized: run.Synthesized,
		DurationMs:  float64(run.Duration.Microseconds()) / 1e3,
		StartedAt:   run.StartedAt,
	})
	if err != nil {
		monitoring.With(logrus.Fields{"run_id": run.ID.String()}).WithError(err).Warn("failed to record run")
	}
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	statuses := s.dispatcher.Statuses()
	out := make([]ModelInfo, len(statuses))
	for i, st := range statuses {
		out[i] = ModelInfo{Status: st, State: "unavailable"}
		if st.Ready {
			out[i].State = "ready"
		}
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.db == nil {
		httputil.NotFound(w, "run history is disabled")
		return
	}
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			httputil.BadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	filter := q.Get("catalog")
	if filter != "" {
		id, err := catalog.Parse(filter)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter = id.String()
	}

	runs, err := s.db.RecentRuns(filter, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	totals, err := s.db.LabelTotals()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if runs == nil {
		runs = []db.RunRecord{}
	}
	httputil.WriteJSONOK(w, RunsResponse{Runs: runs, Totals: totals})
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	failures, err := s.dispatcher.Reload(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := ReloadResponse{Available: s.dispatcher.AvailableCatalogs()}
	if len(failures) > 0 {
		resp.Failures = make(map[catalog.ID]string, len(failures))
		for id, err := range failures {
			resp.Failures[id] = err.Error()
		}
	}
	httputil.WriteJSONOK(w, resp)
}

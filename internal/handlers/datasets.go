package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tendant/simple-detection-data/internal/catalog"
	"github.com/tendant/simple-detection-data/internal/logging"
	"github.com/tendant/simple-detection-data/internal/transform"
	"github.com/tendant/simple-detection-data/pkg/dataset"
)

// Sample modes accepted by the samples endpoint
const (
	ModeTrain     = "train"
	ModeInference = "inference"
)

// DatasetHandler serves dataset records and sample previews
type DatasetHandler struct {
	catalog *catalog.Catalog
	runners map[string]*transform.Runner
	logger  *zap.Logger
}

// NewDatasetHandler creates a dataset handler. train and inference hold
// the transforms of each registered dataset for the two modes.
func NewDatasetHandler(c *catalog.Catalog, train, inference *transform.Runner, logger *zap.Logger) *DatasetHandler {
	return &DatasetHandler{
		catalog: c,
		runners: map[string]*transform.Runner{
			ModeTrain:     train,
			ModeInference: inference,
		},
		logger: logging.OrNop(logger),
	}
}

// Register adds the dataset routes to mux
func (h *DatasetHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/datasets", h.HandleList)
	mux.HandleFunc("GET /v1/datasets/{name}/records", h.HandleRecords)
	mux.HandleFunc("GET /v1/datasets/{name}/samples/{index}", h.HandleSample)
}

// HandleList handles GET /v1/datasets
func (h *DatasetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataset.DatasetList{Datasets: h.catalog.Names()})
}

// HandleRecords handles GET /v1/datasets/{name}/records
func (h *DatasetHandler) HandleRecords(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	records, err := h.catalog.Get(r.Context(), name)
	if err != nil {
		h.fail(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleSample handles GET /v1/datasets/{name}/samples/{index}?mode=train.
// Every request builds a new sample.
func (h *DatasetHandler) HandleSample(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		http.Error(w, "index must be a non-negative integer", http.StatusBadRequest)
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = ModeInference
	}
	runner, ok := h.runners[mode]
	if !ok || runner == nil {
		http.Error(w, fmt.Sprintf("unknown mode: %s", mode), http.StatusBadRequest)
		return
	}

	records, err := h.catalog.Get(r.Context(), name)
	if err != nil {
		h.fail(w, name, err)
		return
	}
	if index >= len(records) {
		http.Error(w, fmt.Sprintf("index %d out of range (%d records)", index, len(records)), http.StatusNotFound)
		return
	}

	runID := uuid.New().String()
	h.logger.Info("building sample",
		zap.String("run_id", runID),
		zap.String("dataset", name),
		zap.Int("index", index),
		zap.String("mode", mode))

	sample, err := runner.Run(transform.WithRunID(r.Context(), runID), name, records[index])
	if err != nil {
		h.fail(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, dataset.Summarize(runID, sample, mode == ModeTrain))
}

func (h *DatasetHandler) fail(w http.ResponseWriter, name string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, catalog.ErrNotRegistered) || errors.Is(err, transform.ErrTransformNotFound) {
		status = http.StatusNotFound
	}
	h.logger.Warn("request failed", zap.String("dataset", name), zap.Int("status", status), zap.Error(err))
	http.Error(w, err.Error(), status)
}

// HandleHealth returns health status
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

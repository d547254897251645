package server

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/sweeplens/internal/ingest"
	"github.com/sanspareilsmyn/sweeplens/internal/pipeline"
	"github.com/sanspareilsmyn/sweeplens/internal/render"
	"github.com/sanspareilsmyn/sweeplens/internal/stats"
	"github.com/sanspareilsmyn/sweeplens/internal/store"
	"github.com/sanspareilsmyn/sweeplens/internal/telemetry"
)

const dateFmt = "2006-01-02"

// Processor runs ingests and date-range queries.
type Processor interface {
	Ingest(ctx context.Context, sn string, paths []string) (*pipeline.Run, error)
	Query(ctx context.Context, sn string, start, end time.Time) (*pipeline.Run, error)
}

// Handler serves the /api/v1 routes.
type Handler struct {
	proc   Processor
	layout *ingest.Layout
	store  store.Gateway
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(proc Processor, layout *ingest.Layout, gw store.Gateway, logger *zap.Logger) *Handler {
	return &Handler{proc: proc, layout: layout, store: gw, logger: logger}
}

type skippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

type runResponse struct {
	RunID    string          `json:"run_id"`
	SN       string          `json:"sn"`
	Merged   bool            `json:"merged"`
	Snapshot *stats.Snapshot `json:"snapshot,omitempty"`
	Charts   []string        `json:"charts,omitempty"`
	Skipped  []skippedFile   `json:"skipped,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type rejectedFile struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Stored     []string       `json:"stored"`
	Duplicates []string       `json:"duplicates"`
	Rejected   []rejectedFile `json:"rejected"`
	Runs       []runResponse  `json:"runs"`
}

func newRunResponse(sn string, run *pipeline.Run) runResponse {
	resp := runResponse{RunID: run.ID, SN: sn, Merged: run.Merged, Charts: run.Charts}
	snap := run.Snapshot
	resp.Snapshot = &snap
	for _, f := range run.Skipped() {
		s := skippedFile{Path: filepath.Base(f.Path), Reason: string(f.Reason)}
		if f.Err != nil {
			s.Error = f.Err.Error()
		}
		resp.Skipped = append(resp.Skipped, s)
	}
	return resp
}

// Upload stores every file of the multipart "files" field and runs one
// ingest per SN over the files that were not stored before.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "files required"})
		return
	}

	resp := uploadResponse{Stored: []string{}, Duplicates: []string{}, Rejected: []rejectedFile{}, Runs: []runResponse{}}
	pending := map[string][]string{}
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejectedFile{Name: fh.Filename, Error: err.Error()})
			continue
		}
		stored, rejected := h.layout.StoreUpload(fh.Filename, data)
		for _, r := range rejected {
			resp.Rejected = append(resp.Rejected, rejectedFile{Name: r.Name, Error: r.Err.Error()})
		}
		for _, s := range stored {
			if s.Duplicate {
				resp.Duplicates = append(resp.Duplicates, s.Name)
				continue
			}
			resp.Stored = append(resp.Stored, s.Name)
			pending[s.SN] = append(pending[s.SN], s.Path)
		}
	}

	sns := make([]string, 0, len(pending))
	for sn := range pending {
		sns = append(sns, sn)
	}
	slices.Sort(sns)
	for _, sn := range sns {
		run, err := h.proc.Ingest(c.Request.Context(), sn, pending[sn])
		if err != nil {
			h.logger.Warn("Ingest failed", zap.String("sn", sn), zap.Error(err))
			resp.Runs = append(resp.Runs, runResponse{SN: sn, Error: err.Error()})
			continue
		}
		resp.Runs = append(resp.Runs, newRunResponse(sn, run))
	}

	if len(resp.Stored) == 0 && len(resp.Duplicates) == 0 {
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// SNs lists every machine with stored logs or snapshots.
func (h *Handler) SNs(c *gin.Context) {
	fromData, err := h.layout.SNs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	fromResults, err := h.store.ListSNs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sns := append(append([]string{}, fromData...), fromResults...)
	slices.Sort(sns)
	c.JSON(http.StatusOK, gin.H{"sns": slices.Compact(sns)})
}

// Data computes statistics over stored logs in an optional date range
// without persisting them.
func (h *Handler) Data(c *gin.Context) {
	sn := c.Query("sn")
	if sn == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sn required"})
		return
	}
	if err := telemetry.ValidSN(sn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, want YYYY-MM-DD"})
		return
	}
	end, err := parseDate(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date, want YYYY-MM-DD"})
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end date before start date"})
		return
	}

	run, err := h.proc.Query(c.Request.Context(), sn, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run.Snapshot.FileCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for sn in range"})
		return
	}
	c.JSON(http.StatusOK, newRunResponse(sn, run))
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateFmt, s)
}

// Snapshot returns the latest persisted snapshot of an SN.
func (h *Handler) Snapshot(c *gin.Context) {
	sn := c.Param("sn")
	if err := telemetry.ValidSN(sn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.store.LoadLatest(c.Request.Context(), sn)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Graph serves a rendered chart document.
func (h *Handler) Graph(c *gin.Context) {
	sn, name := c.Param("sn"), c.Param("name")
	if telemetry.ValidSN(sn) != nil || path.Base(name) != name || filepath.Ext(name) != render.Ext {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chart name"})
		return
	}
	data, err := afero.ReadFile(h.layout.Fs, filepath.Join(h.layout.GraphDir(sn), name))
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/api/respond"
	"github.com/aliskhannn/imageforge/internal/model"
	"github.com/aliskhannn/imageforge/internal/service/batch"
)

// service defines the interface for batch-job operations.
type service interface {
	Submit(ctx context.Context, archivePaths []string, numFolders int) (model.ProcessingJob, error)
	Job(id uuid.UUID) (model.ProcessingJob, error)
}

// liveBridge upgrades dashboard connections onto a job's progress stream.
type liveBridge interface {
	Serve(w http.ResponseWriter, r *http.Request, jobID uuid.UUID)
}

// archiveStore reads and removes uploaded archives in object storage.
type archiveStore interface {
	Load(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// Handler provides HTTP handlers for batch-job endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service service
	bridge  liveBridge
	store   archiveStore // may be nil
}

// NewHandler creates a new Handler with the given service and live bridge.
// A nil store disables the object-storage fallback for downloads.
func NewHandler(s service, b liveBridge, store archiveStore) *Handler {
	return &Handler{service: s, bridge: b, store: store}
}

// SubmitRequest represents a batch submission sent by the client.
type SubmitRequest struct {
	ArchivePaths []string `json:"archive_paths"`
	NumFolders   int      `json:"num_folders"`
}

// Submit handles the HTTP request for submitting a new batch job.
func (h *Handler) Submit(c *ginext.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Err(err).Msg("failed to bind submit request")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if len(req.ArchivePaths) == 0 {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("archive_paths is required"))
		return
	}

	job, err := h.service.Submit(c.Request.Context(), req.ArchivePaths, req.NumFolders)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to submit batch")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to submit batch: %v", err))
		return
	}

	respond.Created(c, job)
}

// Get returns the snapshot of one batch job.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.service.Job(id)
	if err != nil {
		if errors.Is(err, batch.ErrJobNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("job not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get job")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get job: %v", err))
		return
	}

	respond.OK(c, job)
}

// Archive serves the finished output archive of a completed job.
func (h *Handler) Archive(c *ginext.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.service.Job(id)
	if err != nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("job not found"))
		return
	}

	if job.Status != model.StatusCompleted || job.ArchivePath == "" {
		respond.Fail(c, http.StatusConflict, fmt.Errorf("job is not completed"))
		return
	}

	f, err := os.Open(job.ArchivePath)
	if err != nil {
		// the local copy may be gone; serve the uploaded object instead
		if h.store != nil && job.ObjectPath != "" {
			h.serveStored(c, job)
			return
		}

		zlog.Logger.Err(err).Str("archive", job.ArchivePath).Msg("failed to open archive")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to open archive"))
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(job.ArchivePath))
	respond.Zip(c, http.StatusOK, f)
}

// serveStored streams the archive from object storage.
func (h *Handler) serveStored(c *ginext.Context, job model.ProcessingJob) {
	obj, err := h.store.Load(c.Request.Context(), job.ObjectPath)
	if err != nil {
		zlog.Logger.Err(err).Str("object", job.ObjectPath).Msg("failed to load stored archive")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to open archive"))
		return
	}
	defer obj.Close()

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(job.ArchivePath))
	respond.Zip(c, http.StatusOK, obj)
}

// Purge removes a completed job's output archive, locally and from
// object storage.
func (h *Handler) Purge(c *ginext.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.service.Job(id)
	if err != nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("job not found"))
		return
	}

	if job.ArchivePath != "" {
		if err := os.Remove(job.ArchivePath); err != nil && !os.IsNotExist(err) {
			zlog.Logger.Err(err).Str("archive", job.ArchivePath).Msg("failed to remove archive")
			respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to remove archive"))
			return
		}
	}

	if h.store != nil && job.ObjectPath != "" {
		if err := h.store.Delete(c.Request.Context(), job.ObjectPath); err != nil {
			zlog.Logger.Err(err).Str("object", job.ObjectPath).Msg("failed to remove stored archive")
			respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to remove stored archive"))
			return
		}
	}

	respond.OK(c, "archive purged")
}

// Live upgrades the request to a websocket carrying the job's progress stream.
func (h *Handler) Live(c *ginext.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	h.bridge.Serve(c.Writer, c.Request, id)
}

// jobID parses the id path parameter, failing the request when invalid.
func (h *Handler) jobID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	if idStr == "" {
		zlog.Logger.Warn().Msg("missing id")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to parse id")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}

	return id, true
}

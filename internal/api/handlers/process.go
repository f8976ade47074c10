package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"FrameForge/internal/job"
	"FrameForge/internal/pipeline"

	"go.uber.org/zap"
)

// UploadField is the multipart field carrying the video
const UploadField = "file"

// Processor runs a job synchronously and leaves its artifacts in place until
// Cleanup is called.
type Processor interface {
	NewJob(id string, src job.SourceRef) *job.Job
	Process(ctx context.Context, j *job.Job) (*pipeline.Result, error)
	Cleanup(j *job.Job)
}

// ProcessHandler handles video uploads and answers with the frames archive
type ProcessHandler struct {
	processor Processor
	uploadDir string
	maxBytes  int64
	logger    *zap.Logger
}

// NewProcessHandler creates a new process handler
func NewProcessHandler(processor Processor, uploadDir string, maxUploadMB int64, logger *zap.Logger) *ProcessHandler {
	return &ProcessHandler{
		processor: processor,
		uploadDir: uploadDir,
		maxBytes:  maxUploadMB << 20,
		logger:    logger,
	}
}

// Handle stores the uploaded video, runs the pipeline and streams frames.zip back
func (h *ProcessHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	var src job.SourceRef
	file, header, err := r.FormFile(UploadField)
	switch {
	case err == nil:
		defer file.Close()
		path, err := h.saveUpload(file, header)
		if err != nil {
			h.logger.Error("Failed to store upload", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to store uploaded file")
			return
		}
		defer os.Remove(path)
		src = job.SourceRef{LocalPath: path, MediaType: header.Header.Get("Content-Type")}
	case isTooLarge(err):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %d MB limit", h.maxBytes>>20))
		return
	default:
		// missing field or non-multipart body; validation reports it
		h.logger.Debug("No upload in request", zap.Error(err))
	}

	j := h.processor.NewJob("", src)
	res, err := h.processor.Process(r.Context(), j)
	if err != nil {
		if job.IsInputError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Video processing failed", zap.String("job_id", j.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "Failed to process video",
			"detail": err.Error(),
			"job_id": j.ID,
		})
		return
	}
	defer h.processor.Cleanup(j)

	archive, err := os.Open(res.ArchivePath)
	if err != nil {
		h.logger.Error("Failed to open archive", zap.String("job_id", j.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read archive")
		return
	}
	defer archive.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="frames.zip"`)
	w.Header().Set("X-Job-ID", j.ID)
	w.Header().Set("X-Result-Key", res.ResultKey)
	if res.ResultURL != "" {
		w.Header().Set("X-Result-URL", res.ResultURL)
	}
	http.ServeContent(w, r, "frames.zip", time.Time{}, archive)

	h.logger.Info("Archive sent",
		zap.String("job_id", j.ID),
		zap.String("result_key", res.ResultKey),
	)
}

// saveUpload writes the upload as <unix-nanos><ext> under the upload dir
func (h *ProcessHandler) saveUpload(file multipart.File, header *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	name := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename))
	path := filepath.Join(h.uploadDir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	return path, nil
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

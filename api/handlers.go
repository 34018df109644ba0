package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"citron/jobs"
	"citron/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// handleSyncASR transcribes exactly one uploaded file on the request path.
// The pipeline itself is still bounded by the runner's semaphore, so a
// burst of synchronous requests queues instead of oversubscribing the
// engine.
func (s *Server) handleSyncASR(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		respondError(c, http.StatusBadRequest, "No file was uploaded")
		return
	}
	if len(files) != 1 {
		respondError(c, http.StatusBadRequest, "Only one file can be uploaded at a time")
		return
	}

	tempPath, err := s.saveUploadToTemp(files[0])
	if err != nil {
		s.respondUploadError(c, err)
		return
	}
	defer os.Remove(tempPath)

	result, err := s.runner.Process(c.Request.Context(), tempPath)
	if err != nil {
		utils.GetLogFromContext(c.Request.Context(), s.log).Error("synchronous transcription failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	fileHeader, fileErr := c.FormFile("file")
	hasFile := fileErr == nil

	fileURL := c.PostForm("file_url")
	if fileURL == "" {
		fileURL = c.Query("file_url")
	}

	if !hasFile && fileURL == "" {
		respondError(c, http.StatusBadRequest, "Either file or file_url must be provided")
		return
	}
	if hasFile && fileURL != "" {
		respondError(c, http.StatusBadRequest, "Only one of file or file_url can be provided")
		return
	}

	id := uuid.NewString()
	job, err := s.store.Create(id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	source := jobs.InputSource{URL: fileURL}
	if hasFile {
		tempPath, err := s.saveUploadToTemp(fileHeader)
		if err != nil {
			if failErr := s.store.Fail(id, err.Error()); failErr != nil {
				s.log.Error("failed to record submission failure", zap.Error(failErr))
			}
			s.respondUploadError(c, err)
			return
		}
		source = jobs.InputSource{Path: tempPath}
	}

	if err := s.pool.Submit(id, source); err != nil {
		if source.Path != "" {
			os.Remove(source.Path)
		}
		if failErr := s.store.Fail(id, err.Error()); failErr != nil {
			s.log.Error("failed to record submission failure", zap.Error(failErr))
		}
		respondError(c, http.StatusServiceUnavailable, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id": id,
		"status":  job.Status,
	})
}

type taskStatusResponse struct {
	TaskID      string      `json:"task_id"`
	Status      jobs.Status `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	job, err := s.store.Get(c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Task not found")
		return
	} else if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, taskStatusResponse{
		TaskID:      job.ID,
		Status:      job.Status,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	})
}

func (s *Server) handleTaskResult(c *gin.Context) {
	job, err := s.store.Get(c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Task not found")
		return
	} else if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}

	switch job.Status {
	case jobs.StatusPending, jobs.StatusProcessing:
		respondError(c, http.StatusBadRequest, fmt.Sprintf("Task is not completed yet. Current status: %s", job.Status))
	case jobs.StatusFailed:
		respondError(c, http.StatusInternalServerError, fmt.Sprintf("Task failed with error: %s", job.Error))
	default:
		c.JSON(http.StatusOK, job.Result)
	}
}

// saveUploadToTemp writes the uploaded part to a temp file with the
// original extension kept, enforcing the configured size limit. The
// caller removes the file.
func (s *Server) saveUploadToTemp(fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("opening upload: %w", err)
	}
	defer src.Close()

	tempFile, err := os.CreateTemp("", "citron-*"+filepath.Ext(fileHeader.Filename))
	if err != nil {
		return "", fmt.Errorf("making temp file: %w", err)
	}
	defer tempFile.Close()

	if _, err := utils.CopyLimit(tempFile, src, s.maxUploadSize); err != nil {
		os.Remove(tempFile.Name())
		return "", fmt.Errorf("writing upload: %w", err)
	}

	return tempFile.Name(), nil
}

func (s *Server) respondUploadError(c *gin.Context, err error) {
	if errors.Is(err, utils.ErrIOLimitReached) {
		respondError(c, http.StatusBadRequest, "Uploaded file is too big")
		return
	}
	respondError(c, http.StatusInternalServerError, err.Error())
}

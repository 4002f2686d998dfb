package solverapi

import (
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/skyanchor/skyanchor/internal/api/response"
	"github.com/skyanchor/skyanchor/internal/solver"
	"github.com/skyanchor/skyanchor/pkg/models"
)

// Uploads are images; anything past this is not a plate to solve.
const maxUploadBytes = 64 << 20

// Solver defines the interface the handlers depend on.
type Solver interface {
	Submit(filename string, file io.Reader) (string, error)
	Status(jobID string) (*models.SolverJob, error)
	Info(jobID string) (*models.JobInfo, error)
}

type uploadResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewUploadHandler returns the handler for POST /upload. It registers the
// job and returns immediately; solving happens in the background.
func NewUploadHandler(svc Solver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		file, header, err := r.FormFile("file")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "no file uploaded")
			return
		}
		defer file.Close()

		if header.Filename == "" {
			response.Error(w, http.StatusBadRequest, "filename is empty")
			return
		}

		jobID, err := svc.Submit(header.Filename, file)
		if err != nil {
			if errors.Is(err, solver.ErrEmptyFilename) {
				response.Error(w, http.StatusBadRequest, "filename is empty")
				return
			}
			response.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		response.JSON(w, uploadResponse{
			JobID:   jobID,
			Status:  models.JobStatusProcessing,
			Message: "job submitted",
		})
	}
}

// NewStatusHandler returns the handler for GET /jobs/{jobID}.
func NewStatusHandler(svc Solver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := svc.Status(chi.URLParam(r, "jobID"))
		if err != nil {
			if errors.Is(err, solver.ErrJobNotFound) {
				response.Error(w, http.StatusNotFound, "job not found")
				return
			}
			response.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		response.JSON(w, job)
	}
}

// NewInfoHandler returns the handler for GET /jobs/{jobID}/info.
func NewInfoHandler(svc Solver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := svc.Info(chi.URLParam(r, "jobID"))
		if err != nil {
			if errors.Is(err, solver.ErrJobNotFound) {
				response.Error(w, http.StatusNotFound, "job not found")
				return
			}
			response.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		response.JSON(w, info)
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	SolverPath string `json:"solver_path"`
	Exists     bool   `json:"exists"`
}

// NewHealthHandler reports liveness and whether the solver binary is
// actually installed at the configured path.
func NewHealthHandler(binPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := os.Stat(binPath)
		response.JSON(w, healthResponse{
			Status:     "ok",
			SolverPath: binPath,
			Exists:     err == nil,
		})
	}
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	mw "github.com/skyanchor/skyanchor/internal/api/middleware"
	"github.com/skyanchor/skyanchor/internal/api/response"
	"github.com/skyanchor/skyanchor/internal/positioning"
	"github.com/skyanchor/skyanchor/internal/solveclient"
	"github.com/skyanchor/skyanchor/pkg/models"
)

const maxImageBytes = 64 << 20

// PositioningService defines the interface the handlers depend on.
type PositioningService interface {
	SolveField(ctx context.Context, imagePath string, userID uuid.UUID) (*models.Positioning, error)
	GetHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Positioning, error)
}

// NewSolveHandler returns the handler for POST /api/v1/positioning/solve.
// The solve is synchronous from the caller's point of view: the request
// waits for the terminal outcome, bounded by the service's wait ceiling,
// and client disconnect cancels the wait.
func NewSolveHandler(svc PositioningService, uploadDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
		file, header, err := r.FormFile("image")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "no image uploaded")
			return
		}
		defer file.Close()

		if header.Filename == "" {
			response.Error(w, http.StatusBadRequest, "filename is empty")
			return
		}

		imagePath, err := saveUpload(uploadDir, header.Filename, file)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "failed to store upload")
			return
		}

		rec, err := svc.SolveField(r.Context(), imagePath, userID)
		if err != nil {
			switch {
			case errors.Is(err, positioning.ErrSolveTimeout):
				response.Error(w, http.StatusGatewayTimeout, "plate solve timed out")
			case errors.Is(err, positioning.ErrSolveFailed):
				response.Error(w, http.StatusUnprocessableEntity, err.Error())
			case errors.Is(err, solveclient.ErrUpstream), errors.Is(err, solveclient.ErrUpstreamTimeout):
				response.Error(w, http.StatusBadGateway, "solver service unavailable")
			default:
				response.Error(w, http.StatusInternalServerError, "an unexpected error occurred")
			}
			return
		}

		response.JSON(w, rec)
	}
}

// saveUpload writes the uploaded image under dir with a collision-free
// name. Content validation is owned by the gateway in front of us.
func saveUpload(dir, filename string, file io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, uuid.New().String()+"_"+filepath.Base(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

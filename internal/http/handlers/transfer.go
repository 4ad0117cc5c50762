package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"styletransfer/internal/domain"
	"styletransfer/internal/jobs"
	"styletransfer/internal/middleware"
)

type transferAccepted struct {
	JobID  string          `json:"job_id"`
	Status domain.JobState `json:"status"`
}

// SubmitTransfer accepts a multipart upload with both images and optional
// parameters, and answers as soon as the job is queued.
func (a *App) SubmitTransfer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	content, err := readImage(r, "content_image")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	style, err := readImage(r, "style_image")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	params, err := parseTransferParams(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	id, err := a.Jobs.Submit(r.Context(), jobs.Inputs{Content: content, Style: style}, params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.Logger.Info().
		Str("job_id", id).
		Str("user", middleware.UserIDFromContext(r.Context())).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Msg("transfer accepted")
	a.json(w, http.StatusAccepted, transferAccepted{JobID: id, Status: domain.JobStatePending})
}

func (a *App) TransferStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Jobs.Poll(chi.URLParam(r, "job_id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}

func readImage(r *http.Request, field string) (domain.Artifact, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return domain.Artifact{}, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
		}
		return domain.Artifact{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, field, err)
	}
	defer file.Close()
	return artifactFromPart(file, header, field)
}

func artifactFromPart(file multipart.File, header *multipart.FileHeader, field string) (domain.Artifact, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidInput, field, err)
	}
	if len(data) == 0 {
		return domain.Artifact{}, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, field)
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return domain.Artifact{}, fmt.Errorf("%w: %s must be an image", domain.ErrInvalidInput, field)
	}
	art := domain.Artifact{Filename: header.Filename, MIME: mime, Data: data}
	if err := art.CheckDimensions(); err != nil {
		return domain.Artifact{}, fmt.Errorf("%s: %w", field, err)
	}
	return art, nil
}

// parseTransferParams reads the optional form fields, falling back to the
// defaults for anything omitted.
func parseTransferParams(r *http.Request) (domain.TransferParams, error) {
	params := domain.DefaultTransferParams()

	if raw := strings.TrimSpace(r.FormValue("style_weight")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, fmt.Errorf("%w: style_weight must be a number", domain.ErrInvalidInput)
		}
		params.StyleWeight = v
	}
	if raw := strings.TrimSpace(r.FormValue("content_weight")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return params, fmt.Errorf("%w: content_weight must be a number", domain.ErrInvalidInput)
		}
		params.ContentWeight = v
	}
	if raw := strings.TrimSpace(r.FormValue("num_steps")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return params, fmt.Errorf("%w: num_steps must be an integer", domain.ErrInvalidInput)
		}
		params.NumSteps = v
	}
	if raw := strings.TrimSpace(r.FormValue("layer_weights")); raw != "" {
		weights := map[string]float64{}
		if err := json.Unmarshal([]byte(raw), &weights); err != nil {
			return params, fmt.Errorf("%w: layer_weights must be a JSON object of numbers", domain.ErrInvalidInput)
		}
		params.LayerWeights = weights
	}
	return params, params.Validate()
}

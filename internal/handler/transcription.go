package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/registry"
	"github.com/stemscribe/api/internal/service"
	"github.com/stemscribe/api/internal/storage"
	"github.com/stemscribe/api/pkg/response"
)

type TranscriptionHandler struct {
	service   *service.TranscriptionService
	validator *validator.Validate
}

func NewTranscriptionHandler(svc *service.TranscriptionService, v *validator.Validate) *TranscriptionHandler {
	return &TranscriptionHandler{
		service:   svc,
		validator: v,
	}
}

// Upload handles POST /api/upload
func (h *TranscriptionHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "Audio file is required", nil)
	}

	result, err := h.service.Upload(c.Context(), fileHeader)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFormat) || errors.Is(err, service.ErrFileTooLarge) {
			return response.ValidationError(c, err.Error(), nil)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// Transcribe handles POST /api/transcribe/:jobId
func (h *TranscriptionHandler) Transcribe(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.TranscribeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		if err := h.validator.Struct(&req); err != nil {
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		}
	}

	result, err := h.service.StartTranscription(c.Context(), jobID, &req)
	if err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return response.JobNotFound(c, jobID)
		}
		if errors.Is(err, registry.ErrInvalidState) {
			return response.InvalidState(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, result)
}

// List handles GET /api/jobs
func (h *TranscriptionHandler) List(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{"jobs": h.service.ListJobs()})
}

// Status handles GET /api/status/:jobId
func (h *TranscriptionHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return response.JobNotFound(c, jobID)
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Result handles GET /api/result/:jobId
func (h *TranscriptionHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.GetResult(jobID)
	if err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return response.JobNotFound(c, jobID)
		}
		if errors.Is(err, registry.ErrInvalidState) {
			return response.InvalidState(c, err.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, result)
}

// Delete handles DELETE /api/jobs/:jobId
func (h *TranscriptionHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.service.Delete(jobID); err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			return response.JobNotFound(c, jobID)
		}
		if errors.Is(err, registry.ErrInvalidState) {
			return response.InvalidState(c, "Job is processing and cannot be deleted")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.DeleteResponse{
		JobID:   jobID,
		Message: "Job deleted",
	})
}

// Download handles GET /files/:filename
func (h *TranscriptionHandler) Download(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if filename == "" {
		return response.ValidationError(c, "Filename is required", nil)
	}

	path, err := h.service.ResolveFile(filename)
	if err != nil {
		if errors.Is(err, storage.ErrArtifactNotFound) {
			return response.ArtifactNotFound(c, filename)
		}
		return response.ServiceError(c, err.Error())
	}

	return c.SendFile(path)
}

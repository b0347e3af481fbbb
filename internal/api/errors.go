package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"media-translator/internal/artifacts"
	"media-translator/internal/domain"
	"media-translator/internal/gateway"
	"media-translator/internal/history"
	"media-translator/internal/jobs"
)

var conflictErrors = []error{
	jobs.ErrJobAlreadyRunning,
	jobs.ErrNoRunningJob,
	artifacts.ErrTransferInProgress,
	artifacts.ErrNoJob,
	artifacts.ErrArtifactUnavailable,
}

var badRequestErrors = []error{
	jobs.ErrMissingMedia,
	jobs.ErrAmbiguousMedia,
	jobs.ErrInvalidMediaURL,
	jobs.ErrMissingTargetLanguage,
	jobs.ErrSameLanguage,
	jobs.ErrAutoTargetLanguage,
	jobs.ErrMissingJobID,
	history.ErrInvalidPreferences,
	history.ErrInvalidQuery,
	artifacts.ErrUnknownKind,
}

// statusFor maps an application error onto an HTTP status.
func statusFor(err error) int {
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return http.StatusConflict
		}
	}
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	if errors.Is(err, history.ErrEntryNotFound) {
		return http.StatusNotFound
	}

	var transferErr *artifacts.TransferError
	if errors.As(err, &transferErr) {
		if transferErr.Category == domain.FailureLocalStorage {
			return http.StatusInternalServerError
		}
		return http.StatusBadGateway
	}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		if gwErr.Kind == gateway.KindNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Error    string                     `json:"error"`
	Category domain.FailureCategory     `json:"category,omitempty"`
	Kind     gateway.Kind               `json:"kind,omitempty"`
	Artifact *domain.ArtifactDescriptor `json:"artifact,omitempty"`
}

func writeError(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error(), Kind: gateway.KindOf(err)}
	var transferErr *artifacts.TransferError
	if errors.As(err, &transferErr) {
		resp.Category = transferErr.Category
	}
	c.AbortWithStatusJSON(statusFor(err), resp)
}

// writeArtifactError keeps the failed descriptor in the body so clients can show it.
func writeArtifactError(c *gin.Context, descriptor domain.ArtifactDescriptor, err error) {
	resp := errorResponse{Error: err.Error(), Kind: gateway.KindOf(err), Category: descriptor.Failure}
	if descriptor.Kind != "" {
		resp.Artifact = &descriptor
	}
	c.AbortWithStatusJSON(statusFor(err), resp)
}

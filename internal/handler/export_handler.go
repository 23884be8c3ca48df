package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oculohealth/rota-api/internal/service"
	appErrors "github.com/oculohealth/rota-api/pkg/errors"
	"github.com/oculohealth/rota-api/pkg/response"
	"github.com/oculohealth/rota-api/pkg/storage"
)

// ExportHandler exposes rota file export endpoints.
type ExportHandler struct {
	exports *service.ExportService
	files   *storage.LocalStorage
}

// NewExportHandler creates a new handler.
func NewExportHandler(exports *service.ExportService, files *storage.LocalStorage) *ExportHandler {
	return &ExportHandler{exports: exports, files: files}
}

// Request godoc
// @Summary Queue a rota export
// @Tags Exports
// @Accept json
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /exports [post]
func (h *ExportHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var payload struct {
		ScheduleID string `json:"scheduleId" binding:"required"`
		Format     string `json:"format" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	record, err := h.exports.RequestExport(c.Request.Context(), payload.ScheduleID, payload.Format, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, record, nil)
}

// Status godoc
// @Summary Check an export and obtain a download token
// @Tags Exports
// @Produce json
// @Param id path string true "Export id"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	record, token, err := h.exports.GetExport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := gin.H{"export": record}
	if token != "" {
		payload["download_token"] = token
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Download godoc
// @Summary Download an exported file with a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	record, relPath, err := h.exports.OpenDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.files.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export file is missing"))
		return
	}
	defer file.Close()

	contentType := "text/csv"
	if record.Format == service.ExportFormatPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", `attachment; filename="`+record.FileName+`"`)
	c.Header("Content-Type", contentType)
	c.File(file.Name())
}

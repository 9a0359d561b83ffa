package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"report-composer-go/db"
	"report-composer-go/export"
	"report-composer-go/models"
	"report-composer-go/render"
	"report-composer-go/report"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	exportFailedMessage = "이미지 저장 중 오류가 발생했습니다."
)

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Workspace *report.Workspace
	Exporter  *export.Exporter
	State     *db.StateService
	Logger    *zap.Logger
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(ws *report.Workspace, exporter *export.Exporter, state *db.StateService, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		Workspace: ws,
		Exporter:  exporter,
		State:     state,
		Logger:    logger,
	}
}

// Register mounts every route under /api.
func (h *APIHandler) Register(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/ping", PingHandler)

		// Roster routes
		api.GET("/roster", h.GetRoster)
		api.PUT("/roster", h.PutRoster)
		api.POST("/import/roster", h.ImportRoster)

		// Workspace routes
		api.GET("/workspace", h.GetWorkspace)
		api.POST("/selection", h.SelectBatch)
		api.POST("/selection/single", h.SelectStudent)
		api.POST("/navigation/next", h.Next)
		api.POST("/navigation/prev", h.Prev)
		api.PUT("/navigation/index", h.SetIndex)
		api.PUT("/mode", h.SetMode)
		api.PATCH("/fields", h.UpdateField)

		// Preset routes
		api.GET("/presets", h.GetPresets)
		api.PUT("/presets/:grade", h.PutPreset)
		api.POST("/presets/:grade/apply", h.ApplyPreset)

		// Output routes
		api.GET("/report/preview", h.Preview)
		api.GET("/report/sheet", h.ReportSheet)
		api.POST("/export", h.Export)
	}
}

// displayError answers a failed selection or navigation call: 409 while an
// export owns the display, 400 for an index outside the selection.
func displayError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, report.ErrExporting):
		c.JSON(http.StatusConflict, gin.H{"error": export.ErrExportInProgress.Error()})
	case errors.Is(err, report.ErrIndexOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// --- Roster Handlers ---

// GetRoster handles GET /api/roster
func (h *APIHandler) GetRoster(c *gin.Context) {
	roster, ok := h.State.LoadRoster(c.Request.Context())
	if !ok || roster == nil {
		// Return empty list instead of null for JSON consistency
		c.JSON(http.StatusOK, models.Roster{})
		return
	}
	c.JSON(http.StatusOK, roster)
}

// PutRoster handles PUT /api/roster
func (h *APIHandler) PutRoster(c *gin.Context) {
	var roster models.Roster
	if err := c.ShouldBindJSON(&roster); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	for _, g := range roster {
		if g.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Group name is required"})
			return
		}
	}

	if err := h.State.SaveRoster(c.Request.Context(), roster); err != nil {
		h.Logger.Error("failed to store roster", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store roster"})
		return
	}
	c.JSON(http.StatusOK, roster)
}

// ImportRoster handles POST /api/import/roster
func (h *APIHandler) ImportRoster(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	h.Logger.Info("received roster upload", zap.String("file", header.Filename))

	roster, count, err := h.State.ImportRosterFromExcel(c.Request.Context(), file)
	if err != nil {
		h.Logger.Warn("roster import failed", zap.String("file", header.Filename), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to import roster: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": count,
		"roster":        roster,
	})
}

// --- Workspace Handlers ---

// GetWorkspace handles GET /api/workspace
func (h *APIHandler) GetWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, h.Workspace.View())
}

type selectionRequest struct {
	Students []models.StudentRef `json:"students" binding:"dive"`
}

// SelectBatch handles POST /api/selection
func (h *APIHandler) SelectBatch(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := h.Workspace.SelectBatch(c.Request.Context(), req.Students); err != nil {
		displayError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Workspace.View())
}

// SelectStudent handles POST /api/selection/single
func (h *APIHandler) SelectStudent(c *gin.Context) {
	var ref models.StudentRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := h.Workspace.SelectStudent(c.Request.Context(), ref); err != nil {
		displayError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Workspace.View())
}

// Next handles POST /api/navigation/next
func (h *APIHandler) Next(c *gin.Context) {
	if _, err := h.Workspace.Next(); err != nil {
		displayError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Workspace.View())
}

// Prev handles POST /api/navigation/prev
func (h *APIHandler) Prev(c *gin.Context) {
	if _, err := h.Workspace.Prev(); err != nil {
		displayError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Workspace.View())
}

type indexRequest struct {
	Index *int `json:"index" binding:"required"`
}

// SetIndex handles PUT /api/navigation/index
func (h *APIHandler) SetIndex(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if err := h.Workspace.SetIndex(*req.Index); err != nil {
		displayError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Workspace.View())
}

type modeRequest struct {
	Individual bool `json:"individual"`
}

// SetMode handles PUT /api/mode
func (h *APIHandler) SetMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	h.Workspace.SetIndividualMode(req.Individual)
	c.JSON(http.StatusOK, h.Workspace.View())
}

type fieldRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// UpdateField handles PATCH /api/fields
func (h *APIHandler) UpdateField(c *gin.Context) {
	var req fieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	key, err := models.ParseFieldKey(req.Key)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	changed, err := h.Workspace.UpdateField(c.Request.Context(), key, req.Value)
	if err != nil {
		h.Logger.Error("field update failed", zap.String("key", req.Key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update field"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "workspace": h.Workspace.View()})
}

// --- Preset Handlers ---

// GetPresets handles GET /api/presets
func (h *APIHandler) GetPresets(c *gin.Context) {
	c.JSON(http.StatusOK, h.Workspace.Presets())
}

// PutPreset handles PUT /api/presets/:grade
func (h *APIHandler) PutPreset(c *gin.Context) {
	grade := c.Param("grade")
	var preset models.GradePreset
	if err := c.ShouldBindJSON(&preset); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	h.Workspace.UpdatePreset(c.Request.Context(), grade, preset)
	c.JSON(http.StatusOK, preset)
}

// ApplyPreset handles POST /api/presets/:grade/apply
func (h *APIHandler) ApplyPreset(c *gin.Context) {
	grade := c.Param("grade")
	changed, err := h.Workspace.ApplyPreset(c.Request.Context(), grade)
	if err != nil {
		if errors.Is(err, report.ErrUnknownPreset) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Preset not found"})
			return
		}
		h.Logger.Error("preset apply failed", zap.String("grade", grade), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply preset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "workspace": h.Workspace.View()})
}

// --- Output Handlers ---

// Preview handles GET /api/report/preview
func (h *APIHandler) Preview(c *gin.Context) {
	page, err := render.HTML(h.Workspace.Effective())
	if err != nil {
		h.Logger.Error("preview render failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render report"})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// ReportSheet handles GET /api/report/sheet
func (h *APIHandler) ReportSheet(c *gin.Context) {
	view := h.Workspace.View()
	shared := h.Workspace.Shared()
	overrides := h.Workspace.Overrides()

	reports := make([]models.ReportFields, 0, len(view.Selection))
	for i := range view.Selection {
		reports = append(reports, report.Derive(shared, overrides, &view.Selection[i]))
	}

	var buf bytes.Buffer
	if err := db.WriteReportSheet(&buf, reports); err != nil {
		h.Logger.Error("report sheet failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report sheet"})
		return
	}
	name := "학습보고서_" + h.Workspace.Today() + ".xlsx"
	c.Header("Content-Disposition", contentDisposition(name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Export handles POST /api/export
func (h *APIHandler) Export(c *gin.Context) {
	art, err := h.Exporter.Export(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, export.ErrExportInProgress), errors.Is(err, report.ErrExporting):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, export.ErrNothingSelected):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			// Already logged by the exporter.
			c.JSON(http.StatusInternalServerError, gin.H{"error": exportFailedMessage})
		}
		return
	}

	c.Header("Content-Disposition", contentDisposition(art.Filename))
	c.Header("X-Export-ID", art.ID)
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

// contentDisposition builds an attachment header that keeps non-ASCII file names intact.
func contentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(name))
}

// --- Ping Handler ---
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

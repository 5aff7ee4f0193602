package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/examination-service/internal/services"
	"github.com/SAP-F-2025/examination-service/internal/utils"
)

// CRUDHandler serves the uniform list/create/get/update/delete/search/export routes of one entity
type CRUDHandler[T any, C any, U any] struct {
	BaseHandler
	resource string
	label    string
	service  services.CRUDService[T, C, U]
	exporter services.ExportService
}

// NewCRUDHandler builds the handler; resource is the route segment and export name, label the human name
func NewCRUDHandler[T any, C any, U any](
	resource, label string,
	service services.CRUDService[T, C, U],
	exporter services.ExportService,
	logger utils.Logger,
) *CRUDHandler[T, C, U] {
	return &CRUDHandler[T, C, U]{
		BaseHandler: NewBaseHandler(logger),
		resource:    resource,
		label:       label,
		service:     service,
		exporter:    exporter,
	}
}

// Register mounts the cluster on group
func (h *CRUDHandler[T, C, U]) Register(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/search", h.Search)
	group.GET("/export", h.Export)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}

// List returns one page
// @Router /{resource} [get]
func (h *CRUDHandler[T, C, U]) List(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	query := parseListQuery(c)
	h.LogRequest(c, "Listing "+h.resource, "page", query.Page, "size", query.Size)

	page, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, page, "")
}

// Create validates and stores a new record
// @Router /{resource} [post]
func (h *CRUDHandler[T, C, U]) Create(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req C
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating "+h.label)

	entity, err := h.service.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.created(c, entity, h.label+" created successfully")
}

// Get returns one record
// @Router /{resource}/{id} [get]
func (h *CRUDHandler[T, C, U]) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	entity, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, entity, "")
}

// Update applies a partial update
// @Router /{resource}/{id} [put]
func (h *CRUDHandler[T, C, U]) Update(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req U
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Updating "+h.label, "id", id)

	entity, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.ok(c, entity, h.label+" updated successfully")
}

// Delete soft deletes a record without dependents
// @Router /{resource}/{id} [delete]
func (h *CRUDHandler[T, C, U]) Delete(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting "+h.label, "id", id)

	if err := h.service.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{
		Message: h.label + " deleted successfully",
	})
}

// Search matches the search term against the entity's text columns
// @Router /{resource}/search [get]
func (h *CRUDHandler[T, C, U]) Search(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	items, err := h.service.Search(c.Request.Context(), actor, c.Query("search"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if items == nil {
		items = []*T{}
	}

	h.ok(c, items, "")
}

// Export streams the filtered rows as csv (default) or xlsx
// @Router /{resource}/export [get]
func (h *CRUDHandler[T, C, U]) Export(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	format := services.ExportFormat(c.DefaultQuery("format", string(services.ExportCSV)))
	query := parseListQuery(c)
	h.LogRequest(c, "Exporting "+h.resource, "format", format)

	file, err := h.exporter.Export(c.Request.Context(), actor, h.resource, query, format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"encaissement/internal/domain/student"
	"encaissement/internal/infrastructure/http/v1/dto"
)

// StudentHandler handles student catalog endpoints.
type StudentHandler struct {
	*BaseHandler
	service *student.Service
}

// NewStudentHandler creates a new student handler.
func NewStudentHandler(base *BaseHandler, service *student.Service) *StudentHandler {
	return &StudentHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /etudiants
func (h *StudentHandler) Create(c *gin.Context) {
	var req dto.CreateStudentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	st, err := h.service.Create(c.Request.Context(), req.ToCreateInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromStudent(st))
}

// Get handles GET /etudiants/:id
func (h *StudentHandler) Get(c *gin.Context) {
	st, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStudent(st))
}

// List handles GET /etudiants
func (h *StudentHandler) List(c *gin.Context) {
	var query dto.StudentListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	items, err := h.service.List(c.Request.Context(), query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromStudents(items)))
}

// Update handles PUT /etudiants/:id
func (h *StudentHandler) Update(c *gin.Context) {
	var req dto.UpdateStudentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	st, err := h.service.Update(c.Request.Context(), c.Param("id"), req.ToUpdateInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStudent(st))
}

// Delete handles DELETE /etudiants/:id
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"encaissement/internal/core/apperror"
	"encaissement/internal/core/id"
	"encaissement/internal/domain/payment"
	"encaissement/internal/infrastructure/http/v1/dto"
)

// attachmentFormField is the multipart field carrying the receipt file.
const attachmentFormField = "pieceJoint"

// AttachmentStore saves and serves receipt attachments.
type AttachmentStore interface {
	Save(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// PaymentHandler handles payment record endpoints.
type PaymentHandler struct {
	*BaseHandler
	service     *payment.Service
	attachments AttachmentStore
}

// NewPaymentHandler creates a new payment handler. attachments may be nil
// when no object storage is configured; uploads are then rejected.
func NewPaymentHandler(base *BaseHandler, service *payment.Service, attachments AttachmentStore) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler: base,
		service:     service,
		attachments: attachments,
	}
}

// Create handles POST /paiements
// Accepts either a JSON body or multipart/form-data with an optional
// receipt file in the pieceJoint field.
func (h *PaymentHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreatePaymentRequest
	var file *multipart.FileHeader

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		parsed, fh, err := h.parseMultipart(c)
		if err != nil {
			h.Error(c, err)
			return
		}
		req, file = parsed, fh
	} else if !h.BindJSON(c, &req) {
		return
	}

	in := req.ToCreateInput()
	ownerID, err := id.Parse(h.GetUserID(c))
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return
	}
	in.OwnerUserID = ownerID

	if file != nil {
		key, err := h.saveAttachment(ctx, file)
		if err != nil {
			h.Error(c, err)
			return
		}
		in.AttachmentPath = key
	}

	p, err := h.service.Create(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromPayment(p))
}

// Import handles POST /paiements/import
// Accepts a record carried over from a previous system, reference number
// included. Admin only.
func (h *PaymentHandler) Import(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ImportPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in := req.ToCreateInput()
	ownerID, err := id.Parse(h.GetUserID(c))
	if err != nil {
		h.Error(c, apperror.NewUnauthorized("not authenticated"))
		return
	}
	in.OwnerUserID = ownerID

	p, err := h.service.Create(ctx, in)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromPayment(p))
}

// Get handles GET /paiements/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.FromPayment(p)
	h.attachURL(c.Request.Context(), &resp)
	h.OK(c, resp)
}

// List handles GET /paiements
func (h *PaymentHandler) List(c *gin.Context) {
	opts := payment.ListOptions{
		SortByDateDesc: true,
		Limit:          h.ParseIntQuery(c, "limit", 0),
	}

	items, err := h.service.List(c.Request.Context(), opts)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromPayments(items)))
}

// Recent handles GET /paiements/recent
func (h *PaymentHandler) Recent(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 0)

	items, err := h.service.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromPayments(items)))
}

// ListByUser handles GET /paiements/utilisateur/:userId
func (h *PaymentHandler) ListByUser(c *gin.Context) {
	items, err := h.service.ListByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(dto.FromPayments(items)))
}

// Update handles PUT /paiements/:id
func (h *PaymentHandler) Update(c *gin.Context) {
	var req dto.UpdatePaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Update(c.Request.Context(), c.Param("id"), req.ToUpdateInput())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPayment(p))
}

// Delete handles DELETE /paiements/:id
func (h *PaymentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Attachment handles GET /paiements/:id/piece-jointe
// Returns a temporary download URL for the stored receipt.
func (h *PaymentHandler) Attachment(c *gin.Context) {
	ctx := c.Request.Context()

	p, err := h.service.Get(ctx, c.Param("id"))
	if err != nil {
		h.Error(c, err)
		return
	}

	if p.AttachmentPath == "" {
		h.Error(c, apperror.NewNotFound("attachment", p.ID.String()))
		return
	}
	if h.attachments == nil {
		h.Error(c, apperror.NewValidation("attachment storage is not configured"))
		return
	}

	url, err := h.attachments.PresignGet(ctx, p.AttachmentPath)
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return
	}

	h.OK(c, gin.H{"url": url})
}

func (h *PaymentHandler) saveAttachment(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if h.attachments == nil {
		return "", apperror.NewValidation("attachment storage is not configured")
	}

	f, err := fh.Open()
	if err != nil {
		return "", apperror.NewValidation("cannot read attachment").WithDetail("error", err.Error())
	}
	defer f.Close()

	key, err := h.attachments.Save(ctx, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		return "", apperror.NewInternal(err)
	}

	return key, nil
}

// attachURL fills the presigned download URL when the record has an
// attachment and storage is configured. Best-effort.
func (h *PaymentHandler) attachURL(ctx context.Context, resp *dto.PaymentResponse) {
	if resp.AttachmentPath == "" || h.attachments == nil {
		return
	}
	if url, err := h.attachments.PresignGet(ctx, resp.AttachmentPath); err == nil {
		resp.AttachmentURL = url
	}
}

func (h *PaymentHandler) parseMultipart(c *gin.Context) (dto.CreatePaymentRequest, *multipart.FileHeader, error) {
	var req dto.CreatePaymentRequest

	req.Client = c.PostForm("client")
	req.Moyen = c.PostForm("moyen")
	req.Description = c.PostForm("description")
	req.Faculte = c.PostForm("faculte")

	if raw := c.PostForm("montant"); raw != "" {
		montant, err := decimal.NewFromString(raw)
		if err != nil {
			return req, nil, apperror.NewValidation("invalid montant").WithDetail("value", raw)
		}
		req.Montant = montant
	}

	if raw := c.PostForm("date"); raw != "" {
		date, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return req, nil, apperror.NewValidation("invalid date, expected RFC 3339").WithDetail("value", raw)
		}
		req.Date = &date
	}

	file, err := c.FormFile(attachmentFormField)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return req, nil, apperror.NewValidation("invalid attachment").WithDetail("error", err.Error())
	}

	return req, file, nil
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/beaconops/emergency-dispatch/internal/audit"
	"github.com/beaconops/emergency-dispatch/internal/feed"
	"github.com/beaconops/emergency-dispatch/internal/intake"
	"github.com/beaconops/emergency-dispatch/internal/models"
	"github.com/beaconops/emergency-dispatch/internal/repository"
)

type Handler struct {
	book        repository.ContactBook
	manager     *intake.Manager
	auditLog    *audit.Log
	broadcaster *feed.Broadcaster
}

func NewHandler(book repository.ContactBook, manager *intake.Manager, auditLog *audit.Log, broadcaster *feed.Broadcaster) *Handler {
	return &Handler{
		book:        book,
		manager:     manager,
		auditLog:    auditLog,
		broadcaster: broadcaster,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	r.POST("/api/incidents", h.createIncident)
	r.POST("/api/incidents/async", h.queueIncident)

	r.GET("/api/audit", h.getAudit)
	r.DELETE("/api/audit", h.clearAudit)

	r.POST("/api/users", h.createUser)
	r.GET("/api/users/:id", h.getUser)
	r.POST("/api/users/:id/contacts", h.createContact)
	r.GET("/api/users/:id/contacts", h.listContacts)
	r.DELETE("/api/contacts/:id", h.deleteContact)

	r.GET("/api/feed", h.streamFeed)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// createIncident dispatches synchronously and returns the full report. The
// report includes per-alert outcomes even when some channels failed; audit
// write failures surface as warnings on the affected results.
func (h *Handler) createIncident(c *gin.Context) {
	var inc intake.Incident
	if err := c.ShouldBindJSON(&inc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.manager.Dispatch(c.Request.Context(), inc)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to dispatch incident"})
		return
	}

	var auditWarnings []string
	for _, r := range report.Results {
		if r.AuditErr != nil {
			auditWarnings = append(auditWarnings, r.Alert.ID+": "+r.AuditErr.Error())
		}
	}

	resp := gin.H{"report": report}
	if len(auditWarnings) > 0 {
		resp["audit_warnings"] = auditWarnings
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) queueIncident(c *gin.Context) {
	var inc intake.Incident
	if err := c.ShouldBindJSON(&inc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}

	if !h.manager.Enqueue(inc) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "incident queue full"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"incident_id": inc.ID})
}

func (h *Handler) getAudit(c *gin.Context) {
	lines, err := h.auditLog.ReadAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read audit log"})
		return
	}
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (h *Handler) clearAudit(c *gin.Context) {
	if err := h.auditLog.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

type createUserRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &models.User{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: time.Now(),
	}
	if err := h.book.AddUser(c.Request.Context(), user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.book.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

type createContactRequest struct {
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Relation    string `json:"relation"`
	Address     string `json:"address"`
	DeviceToken string `json:"device_token"`
}

func (h *Handler) createContact(c *gin.Context) {
	var req createContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := &models.Contact{
		ID:          uuid.NewString(),
		UserID:      c.Param("id"),
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		Relation:    req.Relation,
		Address:     req.Address,
		DeviceToken: req.DeviceToken,
		CreatedAt:   time.Now(),
	}
	if err := h.book.AddContact(c.Request.Context(), contact); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create contact"})
		return
	}
	c.JSON(http.StatusCreated, contact)
}

func (h *Handler) listContacts(c *gin.Context) {
	contacts, err := h.book.ListContacts(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch contacts"})
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *Handler) deleteContact(c *gin.Context) {
	if err := h.book.DeleteContact(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "contact not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete contact"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

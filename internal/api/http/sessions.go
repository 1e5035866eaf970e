package http

import (
	"net/http"

	"github.com/GriffinCanCode/ghostview/internal/infrastructure/monitoring"
	"github.com/gin-gonic/gin"
)

// ListSessions lists stored sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	saved, err := h.manager.Saved()
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": saved})
}

// ResumeSession reopens a stored session as a live tab
func (h *Handlers) ResumeSession(c *gin.Context) {
	timer := monitoring.NewTimer(h.metrics, "resume")
	tab, err := h.manager.Resume(c.Param("id"))
	if err != nil {
		timer.Stop("error")
		h.fail(c, statusFor(err), err)
		return
	}
	timer.Stop("ok")
	c.JSON(http.StatusOK, tab.Snapshot())
}

// DeleteSession closes a session and removes it from the store
func (h *Handlers) DeleteSession(c *gin.Context) {
	if err := h.manager.Forget(c.Param("id")); err != nil {
		h.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

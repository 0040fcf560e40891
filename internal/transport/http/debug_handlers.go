package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/atomirex/syncroom-server/internal/core"
	"github.com/atomirex/syncroom-server/internal/state"
)

// DebugHandlers exposes the read-only state inspection endpoints plus the
// destructive /clear. Not meant to be reachable in production deployments.
type DebugHandlers struct {
	hub   *core.Hub
	store *state.Store
	log   *zerolog.Logger
}

// NewDebugHandlers creates the debug endpoint handlers.
func NewDebugHandlers(hub *core.Hub, store *state.Store, logger *zerolog.Logger) *DebugHandlers {
	return &DebugHandlers{hub: hub, store: store, log: logger}
}

// Rooms renders the full room map.
// GET /rooms
func (h *DebugHandlers) Rooms(c *gin.Context) {
	c.JSON(stdhttp.StatusOK, h.store.Rooms())
}

// Room renders every online member's state for one room keyed by identity,
// or JSON null when no session occupies it.
// GET /room/:name
func (h *DebugHandlers) Room(c *gin.Context) {
	members, ok := h.hub.RoomMembers(c.Param("name"))
	if !ok {
		c.JSON(stdhttp.StatusOK, nil)
		return
	}
	c.JSON(stdhttp.StatusOK, members)
}

// Clear wipes both in-memory maps.
// POST /clear
func (h *DebugHandlers) Clear(c *gin.Context) {
	h.log.Warn().Msg("clearing all user and room state")
	h.store.Clear()
	c.Status(stdhttp.StatusOK)
}

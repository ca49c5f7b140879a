package controllers

import (
	"net/http"

	"signal-trader/services"

	"github.com/gin-gonic/gin"
)

// SupervisionController exposes the live exit supervision state
type SupervisionController struct {
	exits *services.ExitManager
}

// NewSupervisionController creates a supervision controller
func NewSupervisionController(exits *services.ExitManager) *SupervisionController {
	return &SupervisionController{
		exits: exits,
	}
}

// HandleListPositions handles GET /api/positions/supervised?state=ACTIVE
func (sc *SupervisionController) HandleListPositions(c *gin.Context) {
	state := services.PositionState(c.Query("state"))

	positions := sc.exits.ListPositions(state)

	c.JSON(http.StatusOK, gin.H{
		"count":     len(positions),
		"positions": positions,
	})
}

// HandleGetPosition handles GET /api/positions/supervised/:id
func (sc *SupervisionController) HandleGetPosition(c *gin.Context) {
	positionID := c.Param("id")

	position, err := sc.exits.GetPosition(positionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, position)
}

// HandleAbortPosition handles DELETE /api/positions/supervised/:id.
// Aborting supervision leaves the protective stop order resting so the
// position stays protected.
func (sc *SupervisionController) HandleAbortPosition(c *gin.Context) {
	positionID := c.Param("id")

	if err := sc.exits.Abort(positionID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Supervision aborted; protective stop left resting",
	})
}

package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"eventsapi/models"
)

// POST /events/:id/rsvp
//
// The store applies membership + capacity check and the insert as one
// conditional write, so two racing joins on the last seat cannot both land.
func (d *deps) joinEvent(c *gin.Context) {
	id := c.Param("id")
	userId := c.GetInt64("userId")

	event, err := d.events.Join(id, userId)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found."})
		return
	case errors.Is(err, models.ErrRSVPConflict):
		c.JSON(http.StatusConflict, gin.H{"message": "Cannot join: event full or already joined."})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not join event. Try again later."})
		return
	}

	d.inv.PurgeEventsList(c)
	d.inv.PurgeEventItem(c, id)

	view, err := d.render(event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not join event. Try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined!", "event": view})
}

// DELETE /events/:id/rsvp
func (d *deps) leaveEvent(c *gin.Context) {
	id := c.Param("id")
	userId := c.GetInt64("userId")

	event, err := d.events.Leave(id, userId)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found."})
		return
	case errors.Is(err, models.ErrNotAttending):
		c.JSON(http.StatusNotFound, gin.H{"message": "Not attending this event."})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not leave event. Try again later."})
		return
	}

	d.inv.PurgeEventsList(c)
	d.inv.PurgeEventItem(c, id)

	view, err := d.render(event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not leave event. Try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left event.", "event": view})
}

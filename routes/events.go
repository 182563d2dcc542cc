package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"eventsapi/models"
)

type createEventInput struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location" binding:"required"`
	DateTime    time.Time `json:"dateTime" binding:"required"`
	Capacity    int       `json:"capacity" binding:"required,min=1"`
}

// GET /events
func (d *deps) getEvents(c *gin.Context) {
	events, err := d.events.ListUpcoming(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not fetch events. Try again later."})
		return
	}
	views, err := d.renderAll(events)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not fetch events. Try again later."})
		return
	}
	c.JSON(http.StatusOK, views)
}

// GET /events/:id
func (d *deps) getEvent(c *gin.Context) {
	event, err := d.events.GetByID(c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not fetch event. Try again later."})
		return
	}
	view, err := d.render(event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not fetch event. Try again later."})
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /events
func (d *deps) createEvent(c *gin.Context) {
	var input createEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}

	event := models.Event{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		DateTime:    input.DateTime,
		Capacity:    input.Capacity,
		CreatedBy:   c.GetInt64("userId"),
		Attendees:   []int64{},
	}

	if err := d.events.Create(&event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create event. Try again later."})
		return
	}

	d.inv.PurgeEventsList(c)

	view, err := d.render(event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create event. Try again later."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Event created!", "event": view})
}

// PUT /events/:id
func (d *deps) updateEvent(c *gin.Context) {
	id := c.Param("id")
	userId := c.GetInt64("userId")

	var patch models.EventPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Could not parse request data."})
		return
	}
	if patch.Capacity != nil && *patch.Capacity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Capacity must be at least 1."})
		return
	}
	if patch.Title != nil && *patch.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Title must not be empty."})
		return
	}

	event, err := d.events.UpdateOwned(id, userId, patch)
	switch {
	case errors.Is(err, models.ErrNotOwnerOrMissing):
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found or not owner."})
		return
	case errors.Is(err, models.ErrCapacityBelowAttendance):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Capacity cannot drop below current attendance."})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not update event. Try again later."})
		return
	}

	d.inv.PurgeEventsList(c)
	d.inv.PurgeEventItem(c, id)

	view, err := d.render(event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not update event. Try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!", "event": view})
}

// DELETE /events/:id
func (d *deps) deleteEvent(c *gin.Context) {
	id := c.Param("id")
	userId := c.GetInt64("userId")

	event, err := d.events.DeleteOwned(id, userId)
	if errors.Is(err, models.ErrNotOwnerOrMissing) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found or not owner."})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not delete the event."})
		return
	}

	if event.ImageURL != "" {
		_ = d.uploads.Remove(event.ImageURL)
	}

	d.inv.PurgeEventsList(c)
	d.inv.PurgeEventItem(c, id)

	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully!"})
}

// POST /events/:id/image
func (d *deps) attachEventImage(c *gin.Context) {
	id := c.Param("id")
	userId := c.GetInt64("userId")

	fh, err := c.FormFile("image")
	if err != nil {
		// No file supplied: the association is skipped but the request still
		// succeeds, provided the requester owns the event.
		event, err := d.events.UpdateOwned(id, userId, models.EventPatch{})
		if errors.Is(err, models.ErrNotOwnerOrMissing) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Event not found or not owner."})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not attach image. Try again later."})
			return
		}
		view, err := d.render(event)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not attach image. Try again later."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "No image supplied.", "event": view})
		return
	}

	location, err := d.uploads.Save(fh)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not store image. Try again later."})
		return
	}

	event, err := d.events.SetImageOwned(id, userId, location)
	if errors.Is(err, models.ErrNotOwnerOrMissing) {
		_ = d.uploads.Remove(location)
		c.JSON(http.StatusNotFound, gin.H{"message": "Event not found or not owner."})
		return
	}
	if err != nil {
		_ = d.uploads.Remove(location)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not attach image. Try again later."})
		return
	}

	d.inv.PurgeEventsList(c)
	d.inv.PurgeEventItem(c, id)

	view, err := d.render(event)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not attach image. Try again later."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Image attached!", "event": view})
}

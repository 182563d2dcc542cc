package routes

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eventsapi/middlewares"
	"eventsapi/models"
	"eventsapi/storage"
	"eventsapi/utils"
)

type deps struct {
	users   models.UserRepository
	events  models.EventRepository
	uploads storage.Store
	inv     *utils.CacheInvalidator
}

// RegisterRoutes wires repositories, upload storage and Redis into the route
// table: public reads, rate-limited auth endpoints, and an authenticated
// group with per-user limits and a daily quota.
func RegisterRoutes(
	server *gin.Engine,
	u models.UserRepository,
	e models.EventRepository,
	uploads storage.Store,
	rdb *redis.Client,
	inv *utils.CacheInvalidator,
) {
	d := &deps{users: u, events: e, uploads: uploads, inv: inv}

	// Global per-IP limit.
	globalLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		RPS:     20,
		Burst:   40,
		IdleTTL: 3 * time.Minute,
	})
	server.Use(globalLimiter.Middleware(func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}))

	// Tighter limit on credential endpoints.
	authLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		RPS:     0.5,
		Burst:   2,
		IdleTTL: 10 * time.Minute,
	})
	server.POST("/signup",
		authLimiter.Middleware(func(c *gin.Context) string { return "signup:" + c.ClientIP() }),
		d.signup,
	)
	server.POST("/login",
		authLimiter.Middleware(func(c *gin.Context) string { return "login:" + c.ClientIP() }),
		d.login,
	)

	// Authenticated group: token check first, then per-user limit and quota.
	auth := server.Group("/")
	auth.Use(middlewares.Authenticate)

	userLimiter := middlewares.NewRateLimiter(middlewares.LimiterConfig{
		RPS:     5,
		Burst:   10,
		IdleTTL: 10 * time.Minute,
	})
	auth.Use(userLimiter.Middleware(func(c *gin.Context) string {
		return "u:" + strconv.FormatInt(c.GetInt64("userId"), 10)
	}))

	auth.Use(middlewares.Quota(rdb, middlewares.QuotaRule{
		Limit:  2000,
		Window: 24 * time.Hour,
		KeyFn: func(c *gin.Context) string {
			uid := c.GetInt64("userId")
			if uid == 0 {
				return ""
			}
			return fmt.Sprintf("quota:user:%d:day", uid)
		},
	}))

	server.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Public reads.
	server.GET("/events", d.getEvents)
	server.GET("/events/:id", d.getEvent)

	// Owner CRUD and RSVP.
	auth.POST("/events", d.createEvent)
	auth.PUT("/events/:id", d.updateEvent)
	auth.DELETE("/events/:id", d.deleteEvent)
	auth.POST("/events/:id/rsvp", d.joinEvent)
	auth.DELETE("/events/:id/rsvp", d.leaveEvent)
	auth.POST("/events/:id/image", d.attachEventImage)
}

/* ---------------- response shaping ---------------- */

type userRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// eventView is the wire shape: the Event entity with createdBy and attendees
// expanded to display references.
type eventView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	DateTime    time.Time `json:"dateTime"`
	Capacity    int       `json:"capacity"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedBy   userRef   `json:"createdBy"`
	Attendees   []userRef `json:"attendees"`
}

func (d *deps) renderAll(events []models.Event) ([]eventView, error) {
	idSet := map[int64]struct{}{}
	for _, e := range events {
		idSet[e.CreatedBy] = struct{}{}
		for _, a := range e.Attendees {
			idSet[a] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	names, err := d.users.GetNames(ids)
	if err != nil {
		return nil, err
	}

	out := make([]eventView, 0, len(events))
	for _, e := range events {
		v := eventView{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Location:    e.Location,
			DateTime:    e.DateTime,
			Capacity:    e.Capacity,
			ImageURL:    e.ImageURL,
			CreatedBy:   userRef{ID: e.CreatedBy, Name: names[e.CreatedBy]},
			Attendees:   make([]userRef, 0, len(e.Attendees)),
		}
		for _, a := range e.Attendees {
			v.Attendees = append(v.Attendees, userRef{ID: a, Name: names[a]})
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *deps) render(e models.Event) (eventView, error) {
	views, err := d.renderAll([]models.Event{e})
	if err != nil {
		return eventView{}, err
	}
	return views[0], nil
}

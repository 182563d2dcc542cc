package routes

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"eventsapi/models"
	"eventsapi/storage"
	"eventsapi/utils"
)

/* ---------- in-memory repositories ---------- */

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]models.User // keyed by email
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{users: map[string]models.User{}} }

func (m *memUserRepo) Create(u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return models.ErrDuplicateEmail
	}
	u.ID = int64(len(m.users) + 1)
	m.users[u.Email] = *u
	return nil
}

func (m *memUserRepo) ValidateCredentials(email, plain string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	// plain comparison keeps the tests off the bcrypt cost path
	if !ok || u.Password != plain {
		return models.User{}, models.ErrInvalidCredentials
	}
	return u, nil
}

func (m *memUserRepo) GetByID(id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, errors.New("not found")
}

func (m *memUserRepo) GetNames(ids []int64) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]string{}
	for _, u := range m.users {
		for _, id := range ids {
			if u.ID == id {
				out[id] = u.Name
			}
		}
	}
	return out, nil
}

// seed registers a user directly, bypassing the rate-limited signup route.
func (m *memUserRepo) seed(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := fmt.Sprintf("user%d@example.com", id)
	m.users[email] = models.User{ID: id, Name: name, Email: email, Password: "pw123456"}
}

// memEventRepo applies the same join predicate as the Mongo repository, under
// a mutex standing in for the store's single-document atomicity.
type memEventRepo struct {
	mu    sync.Mutex
	items map[string]models.Event
}

func newMemEventRepo() *memEventRepo { return &memEventRepo{items: map[string]models.Event{}} }

func (m *memEventRepo) ListUpcoming(now time.Time) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Event
	for _, e := range m.items {
		if !e.DateTime.Before(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (m *memEventRepo) GetByID(id string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return models.Event{}, models.ErrNotFound
	}
	return e, nil
}

func (m *memEventRepo) Create(e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Attendees == nil {
		e.Attendees = []int64{}
	}
	m.items[e.ID] = *e
	return nil
}

func (m *memEventRepo) UpdateOwned(id string, ownerID int64, patch models.EventPatch) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok || e.CreatedBy != ownerID {
		return models.Event{}, models.ErrNotOwnerOrMissing
	}
	if patch.Capacity != nil && len(e.Attendees) > *patch.Capacity {
		return models.Event{}, models.ErrCapacityBelowAttendance
	}
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Location != nil {
		e.Location = *patch.Location
	}
	if patch.DateTime != nil {
		e.DateTime = *patch.DateTime
	}
	if patch.Capacity != nil {
		e.Capacity = *patch.Capacity
	}
	m.items[id] = e
	return e, nil
}

func (m *memEventRepo) DeleteOwned(id string, ownerID int64) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok || e.CreatedBy != ownerID {
		return models.Event{}, models.ErrNotOwnerOrMissing
	}
	delete(m.items, id)
	return e, nil
}

func (m *memEventRepo) SetImageOwned(id string, ownerID int64, imageURL string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok || e.CreatedBy != ownerID {
		return models.Event{}, models.ErrNotOwnerOrMissing
	}
	e.ImageURL = imageURL
	m.items[id] = e
	return e, nil
}

func (m *memEventRepo) Join(id string, userID int64) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return models.Event{}, models.ErrNotFound
	}
	for _, a := range e.Attendees {
		if a == userID {
			return models.Event{}, models.ErrRSVPConflict
		}
	}
	if len(e.Attendees) >= e.Capacity {
		return models.Event{}, models.ErrRSVPConflict
	}
	e.Attendees = append(append([]int64{}, e.Attendees...), userID)
	m.items[id] = e
	return e, nil
}

func (m *memEventRepo) Leave(id string, userID int64) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return models.Event{}, models.ErrNotFound
	}
	kept := make([]int64, 0, len(e.Attendees))
	found := false
	for _, a := range e.Attendees {
		if a == userID {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return models.Event{}, models.ErrNotAttending
	}
	e.Attendees = kept
	m.items[id] = e
	return e, nil
}

/* ---------- server harness ---------- */

type serverDeps struct {
	s       *gin.Engine
	ur      *memUserRepo
	er      *memEventRepo
	uploads *storage.LocalStore
}

func setupServerWithDeps(t *testing.T) serverDeps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	inv := utils.NewCacheInvalidator(rdb)

	ur := newMemUserRepo()
	er := newMemEventRepo()
	uploads, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("local store: %v", err)
	}

	s := gin.New()
	RegisterRoutes(s, ur, er, uploads, rdb, inv)
	return serverDeps{s: s, ur: ur, er: er, uploads: uploads}
}

func authToken(t *testing.T, uid int64) string {
	t.Helper()
	token, err := utils.GenerateToken("tester@example.com", uid)
	if err != nil {
		t.Fatalf("gen token: %v", err)
	}
	return token
}

func doReq(s *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	s.ServeHTTP(w, req)
	return w
}

// seedEvent plants an event directly in the repository.
func seedEvent(d serverDeps, id string, owner int64, capacity int, attendees ...int64) models.Event {
	e := models.Event{
		ID:        id,
		Title:     "Event " + id,
		Location:  "Somewhere",
		DateTime:  time.Now().Add(24 * time.Hour),
		Capacity:  capacity,
		CreatedBy: owner,
		Attendees: append([]int64{}, attendees...),
	}
	_ = d.er.Create(&e)
	return e
}

package models

import (
	"errors"
	"time"
)

// Sentinel errors shared by the repositories; routes map them to HTTP codes.
var (
	// ErrNotFound: no event with the given id.
	ErrNotFound = errors.New("event not found")
	// ErrNotOwnerOrMissing: owner-matched lookup missed. Deliberately does not
	// say which of the two happened.
	ErrNotOwnerOrMissing = errors.New("event not found or not owner")
	// ErrRSVPConflict: join rejected, event full or user already attending.
	// The conditional update cannot tell the two apart after the fact.
	ErrRSVPConflict = errors.New("event full or already joined")
	// ErrNotAttending: leave rejected, user is not in the attendee set.
	ErrNotAttending = errors.New("not attending this event")
	// ErrCapacityBelowAttendance: owner tried to shrink capacity under the
	// current attendee count.
	ErrCapacityBelowAttendance = errors.New("capacity below current attendance")
	// ErrDuplicateEmail: signup with an email that is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials: login with unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type Event struct {
	ID          string    `bson:"id" json:"id"` // UUID, cross-store key
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Location    string    `bson:"location" json:"location"`
	DateTime    time.Time `bson:"dateTime" json:"dateTime"`
	Capacity    int       `bson:"capacity" json:"capacity"`
	ImageURL    string    `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedBy   int64     `bson:"createdBy" json:"createdBy"` // owner (SQL user id)
	Attendees   []int64   `bson:"attendees" json:"attendees"`
}

// EventPatch carries an owner update; nil fields are left untouched.
type EventPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	DateTime    *time.Time `json:"dateTime"`
	Capacity    *int       `json:"capacity"`
}

// ===== Events =====
type EventRepository interface {
	// ListUpcoming returns events at or after now, soonest first.
	ListUpcoming(now time.Time) ([]Event, error)
	GetByID(id string) (Event, error)
	Create(e *Event) error
	// UpdateOwned merges patch into the event matching (id, owner) and returns
	// the updated record. Misses report ErrNotOwnerOrMissing.
	UpdateOwned(id string, ownerID int64, patch EventPatch) (Event, error)
	// DeleteOwned removes the event matching (id, owner) and returns the
	// deleted record so callers can release its image asset.
	DeleteOwned(id string, ownerID int64) (Event, error)
	// SetImageOwned stores imageURL on the event matching (id, owner).
	SetImageOwned(id string, ownerID int64, imageURL string) (Event, error)

	// Join adds userID to the attendee set only if, checked atomically at the
	// store, the user is absent and the set is under capacity. One conditional
	// write; no read-then-write.
	Join(id string, userID int64) (Event, error)
	// Leave removes userID from the attendee set; ErrNotAttending if absent.
	Leave(id string, userID int64) (Event, error)
}

// ===== Users =====
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
}

type UserRepository interface {
	Create(u *User) error
	ValidateCredentials(email, plain string) (User, error)
	GetByID(id int64) (User, error)
	// GetNames resolves user ids to display names for response expansion.
	// Unknown ids are simply absent from the result.
	GetNames(ids []int64) (map[int64]string, error)
}

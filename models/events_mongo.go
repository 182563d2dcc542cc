package models

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoEventRepo struct {
	col *mongo.Collection
}

func NewMongoEventRepository(col *mongo.Collection) EventRepository {
	return &mongoEventRepo{col: col}
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (r *mongoEventRepo) ListUpcoming(now time.Time) ([]Event, error) {
	ctx, cancel := opCtx()
	defer cancel()

	filter := bson.M{"dateTime": bson.M{"$gte": now}}
	opts := options.Find().SetSort(bson.D{{Key: "dateTime", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Event
	for cur.Next(ctx) {
		var e Event
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, cur.Err()
}

func (r *mongoEventRepo) GetByID(id string) (Event, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var e Event
	if err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&e); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotFound
		}
		return Event{}, err
	}
	return e, nil
}

func (r *mongoEventRepo) Create(e *Event) error {
	ctx, cancel := opCtx()
	defer cancel()
	if e.Attendees == nil {
		e.Attendees = []int64{}
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *mongoEventRepo) UpdateOwned(id string, ownerID int64, patch EventPatch) (Event, error) {
	ctx, cancel := opCtx()
	defer cancel()

	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.DateTime != nil {
		set["dateTime"] = *patch.DateTime
	}
	if patch.Capacity != nil {
		set["capacity"] = *patch.Capacity
	}

	filter := bson.M{"id": id, "createdBy": ownerID}
	if patch.Capacity != nil {
		// Shrinking capacity must not strand attendees over the limit; the
		// guard rides in the same conditional write as the capacity change.
		filter["$expr"] = bson.M{"$lte": bson.A{attendeeCount(), *patch.Capacity}}
	}

	if len(set) == 0 {
		var e Event
		err := r.col.FindOne(ctx, filter).Decode(&e)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotOwnerOrMissing
		}
		return e, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var e Event
	err := r.col.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Event{}, r.explainUpdateMiss(ctx, id, ownerID, patch)
	}
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

// explainUpdateMiss re-reads once to tell a capacity-guard rejection apart
// from an ownership miss. Purely diagnostic; the write already did not happen.
func (r *mongoEventRepo) explainUpdateMiss(ctx context.Context, id string, ownerID int64, patch EventPatch) error {
	if patch.Capacity == nil {
		return ErrNotOwnerOrMissing
	}
	var e Event
	if err := r.col.FindOne(ctx, bson.M{"id": id, "createdBy": ownerID}).Decode(&e); err != nil {
		return ErrNotOwnerOrMissing
	}
	if len(e.Attendees) > *patch.Capacity {
		return ErrCapacityBelowAttendance
	}
	return ErrNotOwnerOrMissing
}

func (r *mongoEventRepo) DeleteOwned(id string, ownerID int64) (Event, error) {
	ctx, cancel := opCtx()
	defer cancel()

	var e Event
	err := r.col.FindOneAndDelete(ctx, bson.M{"id": id, "createdBy": ownerID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Event{}, ErrNotOwnerOrMissing
	}
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

func (r *mongoEventRepo) SetImageOwned(id string, ownerID int64, imageURL string) (Event, error) {
	ctx, cancel := opCtx()
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var e Event
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"id": id, "createdBy": ownerID},
		bson.M{"$set": bson.M{"imageUrl": imageURL}},
		opts).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Event{}, ErrNotOwnerOrMissing
	}
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

// attendeeCount is the aggregation expression for the current size of the
// attendee set, tolerating documents written before the field existed.
func attendeeCount() bson.M {
	return bson.M{"$size": bson.M{"$ifNull": bson.A{"$attendees", bson.A{}}}}
}

func (r *mongoEventRepo) Join(id string, userID int64) (Event, error) {
	ctx, cancel := opCtx()
	defer cancel()

	// Membership and capacity are checked by the server inside the same write
	// that mutates the set. Two concurrent joins on the last seat serialize at
	// the document; the loser's filter no longer matches and nothing happens.
	filter := bson.M{
		"id":        id,
		"attendees": bson.M{"$ne": userID},
		"$expr":     bson.M{"$lt": bson.A{attendeeCount(), "$capacity"}},
	}
	update := bson.M{"$addToSet": bson.M{"attendees": userID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var e Event
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Miss path only: one extra read to split "no such event" from the
		// merged full-or-already-joined conflict.
		if err := r.col.FindOne(ctx, bson.M{"id": id}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotFound
		}
		return Event{}, ErrRSVPConflict
	}
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

func (r *mongoEventRepo) Leave(id string, userID int64) (Event, error) {
	ctx, cancel := opCtx()
	defer cancel()

	filter := bson.M{"id": id, "attendees": userID}
	update := bson.M{"$pull": bson.M{"attendees": userID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var e Event
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if err := r.col.FindOne(ctx, bson.M{"id": id}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return Event{}, ErrNotFound
		}
		return Event{}, ErrNotAttending
	}
	if err != nil {
		return Event{}, err
	}
	return e, nil
}

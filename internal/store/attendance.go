package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"shiftbot/internal/model"
)

// AttendanceStore persists attendance records and the registered-user
// set. It implements service.PersistenceStore and service.UserStore.
type AttendanceStore struct {
	records *mongo.Collection
	users   *mongo.Collection
}

func NewAttendanceStore(ctx context.Context, db *MongoDB) (*AttendanceStore, error) {
	records := db.Collection("attendance")
	users := db.Collection("registered_users")

	if _, err := records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "work_date", Value: 1},
				{Key: "shift_name", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "work_date", Value: 1}}},
	}); err != nil {
		return nil, fmt.Errorf("create attendance indexes: %w", err)
	}

	if _, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return nil, fmt.Errorf("create registered_users index: %w", err)
	}

	return &AttendanceStore{records: records, users: users}, nil
}

// SaveRecord upserts a record by its (user, work date, shift) key.
func (s *AttendanceStore) SaveRecord(ctx context.Context, rec *model.AttendanceRecord) error {
	filter := bson.M{
		"user_id":    rec.UserID,
		"work_date":  rec.WorkDate,
		"shift_name": rec.ShiftName,
	}
	_, err := s.records.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save attendance record: %w", err)
	}
	return nil
}

// LoadAll returns every persisted attendance record.
func (s *AttendanceStore) LoadAll(ctx context.Context) ([]*model.AttendanceRecord, error) {
	cursor, err := s.records.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find attendance records: %w", err)
	}
	var results []*model.AttendanceRecord
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode attendance records: %w", err)
	}
	return results, nil
}

// AddUser inserts a user into the registration set, idempotently.
func (s *AttendanceStore) AddUser(ctx context.Context, userID int64) error {
	_, err := s.users.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": bson.M{"user_id": userID, "registered_at": time.Now()}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("add registered user: %w", err)
	}
	return nil
}

// LoadUsers returns all registered user ids.
func (s *AttendanceStore) LoadUsers(ctx context.Context) ([]int64, error) {
	cursor, err := s.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find registered users: %w", err)
	}
	var docs []model.RegisteredUser
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode registered users: %w", err)
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.UserID)
	}
	return ids, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB stores one document per user, group and event. A group's members
// and invites are embedded arrays, so roster writes touch a single document.

func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users.email index: %w", err)
	}
	if _, err := db.Collection("events").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "start", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create events.group_id index: %w", err)
	}
	if _, err := db.Collection("refresh_tokens").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create refresh_tokens.expires_at index: %w", err)
	}
	return nil
}

// ============================================
// Users
// ============================================

type mongoUserRepository struct {
	users  *mongo.Collection
	tokens *mongo.Collection
}

func (r *mongoUserRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.GroupIDs == nil {
		user.GroupIDs = []string{}
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	user := &User{}
	err := r.users.FindOne(ctx, filter).Decode(user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user.GroupIDs == nil {
		user.GroupIDs = []string{}
	}
	return user, nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// Emails are stored lower-cased, so an exact match is enough.
func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) FindByIDs(ctx context.Context, ids []string) ([]*User, error) {
	users := []*User{}
	if len(ids) == 0 {
		return users, nil
	}
	cursor, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *mongoUserRepository) Update(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now().UTC()
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"name":       user.Name,
		"email":      user.Email,
		"bio":        user.Bio,
		"avatar":     user.Avatar,
		"updated_at": user.UpdatedAt,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *mongoUserRepository) AddGroup(ctx context.Context, userID, groupID string) error {
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$addToSet": bson.M{"group_ids": groupID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func (r *mongoUserRepository) RemoveGroup(ctx context.Context, userID, groupID string) error {
	_, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$pull": bson.M{"group_ids": groupID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}

func (r *mongoUserRepository) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	token.CreatedAt = time.Now().UTC()
	_, err := r.tokens.InsertOne(ctx, token)
	return err
}

func (r *mongoUserRepository) FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error) {
	rt := &RefreshToken{}
	err := r.tokens.FindOne(ctx, bson.M{"_id": token}).Decode(rt)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *mongoUserRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := r.tokens.DeleteOne(ctx, bson.M{"_id": token})
	return err
}

func (r *mongoUserRepository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.tokens.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ============================================
// Groups
// ============================================

type mongoGroupRepository struct {
	groups *mongo.Collection
}

func (r *mongoGroupRepository) Create(ctx context.Context, group *Group) error {
	now := time.Now().UTC()
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	normalizeGroup(group)
	group.CreatedAt = now
	group.UpdatedAt = now
	_, err := r.groups.InsertOne(ctx, group)
	return err
}

func (r *mongoGroupRepository) FindByID(ctx context.Context, id string) (*Group, error) {
	group := &Group{}
	err := r.groups.FindOne(ctx, bson.M{"_id": id}).Decode(group)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	normalizeGroup(group)
	return group, nil
}

func (r *mongoGroupRepository) FindByIDs(ctx context.Context, ids []string) ([]*Group, error) {
	groups := []*Group{}
	if len(ids) == 0 {
		return groups, nil
	}
	cursor, err := r.groups.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, err
	}
	for _, g := range groups {
		normalizeGroup(g)
	}
	return groups, nil
}

func (r *mongoGroupRepository) Update(ctx context.Context, group *Group) error {
	normalizeGroup(group)
	group.UpdatedAt = time.Now().UTC()
	_, err := r.groups.UpdateOne(ctx, bson.M{"_id": group.ID}, bson.M{"$set": bson.M{
		"name":       group.Name,
		"color":      group.Color,
		"members":    group.Members,
		"invites":    group.Invites,
		"updated_at": group.UpdatedAt,
	}})
	return err
}

func (r *mongoGroupRepository) Delete(ctx context.Context, id string) error {
	_, err := r.groups.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// ============================================
// Events
// ============================================

type mongoEventRepository struct {
	events *mongo.Collection
}

func (r *mongoEventRepository) Create(ctx context.Context, event *Event) error {
	now := time.Now().UTC()
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = now
	event.UpdatedAt = now
	_, err := r.events.InsertOne(ctx, event)
	return err
}

func (r *mongoEventRepository) FindByID(ctx context.Context, id string) (*Event, error) {
	event := &Event{}
	err := r.events.FindOne(ctx, bson.M{"_id": id}).Decode(event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *mongoEventRepository) FindByGroupIDs(ctx context.Context, groupIDs []string) ([]*Event, error) {
	events := []*Event{}
	if len(groupIDs) == 0 {
		return events, nil
	}
	cursor, err := r.events.Find(ctx, bson.M{"group_id": bson.M{"$in": groupIDs}},
		options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *mongoEventRepository) Update(ctx context.Context, event *Event) error {
	_, err := r.events.UpdateOne(ctx, bson.M{"_id": event.ID}, bson.M{"$set": bson.M{
		"title":       event.Title,
		"description": event.Description,
		"start":       event.Start,
		"end":         event.End,
		"all_day":     event.AllDay,
		"updated_at":  event.UpdatedAt,
	}})
	return err
}

func (r *mongoEventRepository) Delete(ctx context.Context, id string) error {
	_, err := r.events.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *mongoEventRepository) DeleteByGroup(ctx context.Context, groupID string) (int64, error) {
	res, err := r.events.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

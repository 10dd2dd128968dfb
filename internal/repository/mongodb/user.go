package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

var _ repository.UserRepository = (*Store)(nil)

type userDoc struct {
	ID        any       `bson:"_id,omitempty"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	Photo     string    `bson:"photo"`
	Role      string    `bson:"role"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d userDoc) toModel() model.User {
	u := model.User{
		ID:        idString(d.ID),
		Email:     d.Email,
		Name:      d.Name,
		Photo:     d.Photo,
		Role:      model.Role(d.Role),
		Status:    model.UserStatus(d.Status),
		CreatedAt: d.CreatedAt,
	}
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	return u
}

// UpsertLogin uses $setOnInsert so the defaults are only written for a new
// document; an existing user keeps its role and status.
func (s *Store) UpsertLogin(ctx context.Context, user *model.User) (bool, error) {
	coll, err := s.collection(ctx, usersCollection)
	if err != nil {
		return false, err
	}

	filter := bson.M{"email": user.Email}
	update := bson.M{
		"$set": bson.M{"name": user.Name, "photo": user.Photo},
		"$setOnInsert": bson.M{
			"_id":       primitive.NewObjectID(),
			"role":      string(model.RoleStudent),
			"status":    string(model.UserActive),
			"createdAt": time.Now().UTC(),
		},
	}

	res, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// Lost a first-login race against the unique email index; the
		// other request created the document, so this one just updates it.
		res, err = coll.UpdateOne(ctx, filter, bson.M{"$set": update["$set"]})
	}
	if err != nil {
		return false, fmt.Errorf("mongo: upserting user %s: %w", user.Email, err)
	}

	stored, err := s.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return false, err
	}
	*user = *stored

	return res.UpsertedCount == 1, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	coll, err := s.collection(ctx, usersCollection)
	if err != nil {
		return nil, err
	}

	var doc userDoc
	if err := coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("mongo: getting user %s: %w", email, err)
	}

	u := doc.toModel()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	coll, err := s.collection(ctx, usersCollection)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: listing users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}

	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, nil
}

func (s *Store) SetUserRole(ctx context.Context, id string, role model.Role) error {
	return s.setFields(ctx, usersCollection, "user", id, bson.M{"role": string(role)})
}

func (s *Store) SetUserStatus(ctx context.Context, id string, status model.UserStatus) error {
	return s.setFields(ctx, usersCollection, "user", id, bson.M{"status": string(status)})
}

// CountUsers uses the collection metadata count. It can lag slightly
// behind writes, which is fine for the dashboard.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	coll, err := s.collection(ctx, usersCollection)
	if err != nil {
		return 0, err
	}
	n, err := coll.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("mongo: counting users: %w", err)
	}
	return n, nil
}

// setFields applies a $set to the document with id and reports NotFound
// when nothing matched.
func (s *Store) setFields(ctx context.Context, collName, resource, id string, fields bson.M) error {
	coll, err := s.collection(ctx, collName)
	if err != nil {
		return err
	}

	res, err := coll.UpdateOne(ctx, idFilter(id), bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("mongo: updating %s %s: %w", resource, id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"fitzone/internal/entity"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	emailIndex    = "principal_email_unique"
	usernameIndex = "principal_username_unique"
)

type mongoPrincipalRepository struct {
	coll *mongo.Collection
}

// NewMongoPrincipalRepository stores principals of one kind in collection.
// Call EnsureIndexes once at startup.
func NewMongoPrincipalRepository(db *mongo.Database, collection string) *mongoPrincipalRepository {
	return &mongoPrincipalRepository{coll: db.Collection(collection)}
}

// EnsureIndexes creates the unique email and username indexes. Emails are
// stored lowercased, so the email index is effectively case-insensitive.
func (r *mongoPrincipalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
	})
	return err
}

func (r *mongoPrincipalRepository) Create(ctx context.Context, p *entity.Principal) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := r.coll.InsertOne(ctx, p)
	return duplicateKind(err)
}

func (r *mongoPrincipalRepository) FindByID(ctx context.Context, id string) (*entity.Principal, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoPrincipalRepository) FindByEmail(ctx context.Context, email string) (*entity.Principal, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoPrincipalRepository) FindByUsername(ctx context.Context, username string) (*entity.Principal, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoPrincipalRepository) Save(ctx context.Context, p *entity.Principal) error {
	next := p.Clone()
	next.Version = p.Version + 1
	next.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": p.ID, "version": p.Version}, next)
	if err != nil {
		return duplicateKind(err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	p.Version = next.Version
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *mongoPrincipalRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// duplicateKind maps a unique index violation to the column it hit. The
// server names the index in the write error message.
func duplicateKind(err error) error {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return err
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			if strings.Contains(we.Message, usernameIndex) {
				return ErrDuplicateUsername
			}
		}
	}
	return ErrDuplicateEmail
}

func (r *mongoPrincipalRepository) List(ctx context.Context, limit, offset int) ([]entity.Principal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	principals := []entity.Principal{}
	if err := cursor.All(ctx, &principals); err != nil {
		return nil, err
	}
	return principals, nil
}

func (r *mongoPrincipalRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

func (r *mongoPrincipalRepository) findOne(ctx context.Context, filter bson.M) (*entity.Principal, error) {
	var p entity.Principal
	err := r.coll.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

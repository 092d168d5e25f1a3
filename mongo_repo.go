package blockhub

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection    = "users"
	ProjectsCollection = "projects"
)

type mongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(c *mongo.Collection) Repository {
	return &mongoUserRepository{collection: c}
}

// InsertIfAbsent upserts with $setOnInsert so the existence check and the
// write are one server-side operation. A duplicate key error means another
// writer won the race on the unique username index.
func (m *mongoUserRepository) InsertIfAbsent(ctx context.Context, u *User) (bool, error) {
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"username": u.Username},
		bson.M{"$setOnInsert": u},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return res.UpsertedCount == 1, nil
}

func (m *mongoUserRepository) FindByName(ctx context.Context, username string) (*User, error) {
	return m.findOne(ctx, bson.M{"username": username})
}

func (m *mongoUserRepository) FindByLinkedAccount(ctx context.Context, acc LinkedAccount) (*User, error) {
	return m.findOne(ctx, bson.M{
		"linkedAccounts": bson.M{"$elemMatch": bson.M{"username": acc.Username, "type": acc.Type}},
	})
}

func (m *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var u User
	err := m.collection.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *mongoUserRepository) UpdateHash(ctx context.Context, username, expected, hash string) (int64, error) {
	filter := bson.M{"username": username}
	if expected != "" {
		filter["hash"] = expected
	}

	res, err := m.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"hash": hash}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (m *mongoUserRepository) FindAndSetHash(ctx context.Context, username, hash string) (*User, error) {
	var prev User
	err := m.collection.FindOneAndUpdate(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"hash": hash}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&prev)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &prev, nil
}

func (m *mongoUserRepository) AddLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error) {
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$addToSet": bson.M{"linkedAccounts": acc}},
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (m *mongoUserRepository) RemoveLinkedAccount(ctx context.Context, username string, acc LinkedAccount) (int64, error) {
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$pull": bson.M{"linkedAccounts": acc}},
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (m *mongoUserRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	_, err := m.collection.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$set": bson.M{"lastLoginAt": at}},
	)
	return err
}

func (m *mongoUserRepository) Delete(ctx context.Context, username string) (int64, error) {
	res, err := m.collection.DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

type mongoProjectRepository struct {
	collection *mongo.Collection
}

func NewMongoProjectRepository(c *mongo.Collection) ProjectRepository {
	return &mongoProjectRepository{collection: c}
}

func (m *mongoProjectRepository) Store(ctx context.Context, p *Project) error {
	_, err := m.collection.InsertOne(ctx, p)
	return err
}

func (m *mongoProjectRepository) FindByID(ctx context.Context, id ProjectID) (*Project, error) {
	var p Project
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *mongoProjectRepository) NamesByOwner(ctx context.Context, owner string) ([]string, error) {
	cursor, err := m.collection.Find(ctx,
		bson.M{"owner": owner},
		options.Find().SetProjection(bson.M{"name": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var projects []Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	return names, nil
}

func (m *mongoProjectRepository) TransferOwnership(ctx context.Context, id ProjectID, from, to, name string) (bool, error) {
	res, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": id, "owner": from},
		bson.M{"$set": bson.M{"owner": to, "name": name, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

func (m *mongoProjectRepository) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	res, err := m.collection.DeleteMany(ctx, bson.M{"owner": owner})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the indexes the repositories rely on. The unique
// username index backs InsertIfAbsent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "linkedAccounts.username", Value: 1}, {Key: "linkedAccounts.type", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(ProjectsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}},
	})
	return err
}

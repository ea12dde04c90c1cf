// Package mongostore adapts a MongoDB collection to the restive
// Collection interface. Selectors translate directly to equality
// queries, Merge uses $set, and projections are built from field
// names.
package mongostore

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/restive-dev/restive"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection wraps a *mongo.Collection.
type Collection struct {
	coll *mongo.Collection
}

func NewCollection(coll *mongo.Collection) *Collection {
	return &Collection{coll: coll}
}

func (c *Collection) Name() string { return c.coll.Name() }

func (c *Collection) Find(ctx context.Context, sel restive.Selector, fields ...string) ([]restive.Record, error) {
	opts := options.Find()
	if proj := projection(fields); proj != nil {
		opts.SetProjection(proj)
	}

	cursor, err := c.coll.Find(ctx, bson.M(sel), opts)
	if err != nil {
		return nil, errors.Wrapf(err, "querying collection '%s'", c.Name())
	}

	out := []restive.Record{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrapf(err, "decoding records from '%s'", c.Name())
	}

	return out, nil
}

func (c *Collection) FindOne(ctx context.Context, sel restive.Selector, fields ...string) (restive.Record, error) {
	opts := options.FindOne()
	if proj := projection(fields); proj != nil {
		opts.SetProjection(proj)
	}

	doc := restive.Record{}
	err := c.coll.FindOne(ctx, bson.M(sel), opts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "querying collection '%s'", c.Name())
	}

	return doc, nil
}

func (c *Collection) Insert(ctx context.Context, doc restive.Record) (string, error) {
	res, err := c.coll.InsertOne(ctx, bson.M(doc))
	if err != nil {
		return "", errors.Wrapf(err, "inserting into collection '%s'", c.Name())
	}

	switch id := res.InsertedID.(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	default:
		return fmt.Sprintf("%v", id), nil
	}
}

func (c *Collection) Update(ctx context.Context, sel restive.Selector, doc restive.Record) (int, error) {
	res, err := c.coll.ReplaceOne(ctx, bson.M(sel), bson.M(doc))
	if err != nil {
		return 0, errors.Wrapf(err, "replacing record in collection '%s'", c.Name())
	}

	return int(res.MatchedCount), nil
}

func (c *Collection) Merge(ctx context.Context, sel restive.Selector, doc restive.Record) (int, error) {
	res, err := c.coll.UpdateOne(ctx, bson.M(sel), bson.M{"$set": bson.M(doc)})
	if err != nil {
		return 0, errors.Wrapf(err, "updating record in collection '%s'", c.Name())
	}

	return int(res.MatchedCount), nil
}

func (c *Collection) Remove(ctx context.Context, sel restive.Selector) (int, error) {
	res, err := c.coll.DeleteMany(ctx, bson.M(sel))
	if err != nil {
		return 0, errors.Wrapf(err, "removing records from collection '%s'", c.Name())
	}

	return int(res.DeletedCount), nil
}

func projection(fields []string) bson.M {
	if len(fields) == 0 {
		return nil
	}

	proj := bson.M{}
	for _, field := range fields {
		proj[field] = 1
	}

	return proj
}

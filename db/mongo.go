package db

import (
	"context"

	"github.com/evergreen-ci/restadmin/model"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoIDKey = "_id"

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to the MongoDB deployment at url and returns a
// Store keeping each model in its own collection of the named database.
func NewMongoStore(ctx context.Context, url, database string) (Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to the database")
	}
	if err = client.Ping(ctx, nil); err != nil {
		grip.Warning(message.WrapError(client.Disconnect(ctx), message.Fields{
			"message": "problem disconnecting after failed ping",
		}))
		return nil, errors.Wrap(err, "pinging the database")
	}

	return &mongoStore{client: client, db: client.Database(database)}, nil
}

func (s *mongoStore) coll(m *model.Model) *mongo.Collection {
	return s.db.Collection(m.Collection())
}

func mongoFilter(q *Query, id string) bson.M {
	filter := bson.M{}
	for k, v := range q.Filter {
		if k == model.IDField {
			filter[mongoIDKey] = v
			continue
		}
		filter[k] = v
	}
	if id == "" {
		return filter
	}
	if _, ok := filter[mongoIDKey]; ok {
		// the query source restricts ids too, so both must hold
		return bson.M{"$and": bson.A{filter, bson.M{mongoIDKey: id}}}
	}
	filter[mongoIDKey] = id
	return filter
}

// toDocument moves the record id into the _id key.
func toDocument(rec model.Record) bson.M {
	doc := bson.M{}
	for k, v := range rec {
		if k == model.IDField {
			continue
		}
		doc[k] = v
	}
	if id := rec.ID(); id != "" {
		doc[mongoIDKey] = id
	}
	return doc
}

func fromDocument(doc bson.M) model.Record {
	rec := model.Record{}
	for k, v := range doc {
		if k == mongoIDKey {
			k = model.IDField
		}
		rec[k] = fromBSONValue(v)
	}
	return rec
}

func fromBSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.ObjectID:
		return val.Hex()
	case primitive.A:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = fromBSONValue(val[i])
		}
		return out
	case bson.M:
		out := map[string]interface{}{}
		for k, inner := range val {
			out[k] = fromBSONValue(inner)
		}
		return out
	case primitive.D:
		out := map[string]interface{}{}
		for _, e := range val {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	default:
		return v
	}
}

func (s *mongoStore) Find(ctx context.Context, q *Query, opts FindOptions) ([]model.Record, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, errors.WithStack(err)
	}

	filter := mongoFilter(q, "")
	total, err := s.coll(q.Model).CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "counting %s", q.Model.VerboseNamePlural)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}})
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.coll(q.Model).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "finding %s", q.Model.VerboseNamePlural)
	}

	docs := []bson.M{}
	if err = cur.All(ctx, &docs); err != nil {
		return nil, 0, errors.Wrapf(err, "reading %s", q.Model.VerboseNamePlural)
	}

	out := make([]model.Record, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromDocument(doc))
	}

	return out, int(total), nil
}

func (s *mongoStore) Get(ctx context.Context, q *Query, id string) (model.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	doc := bson.M{}
	err := s.coll(q.Model).FindOne(ctx, mongoFilter(q, id)).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding %s '%s'", q.Model.VerboseName, id)
	}

	return fromDocument(doc), nil
}

func (s *mongoStore) Insert(ctx context.Context, m *model.Model, rec model.Record) (model.Record, error) {
	out := prepareInsert(rec)

	if _, err := s.coll(m).InsertOne(ctx, toDocument(out)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, errors.Wrapf(ErrDuplicateKey, "%s '%s'", m.VerboseName, out.ID())
		}
		return nil, errors.Wrapf(err, "inserting %s", m.VerboseName)
	}

	return out, nil
}

func (s *mongoStore) Update(ctx context.Context, q *Query, id string, rec model.Record, partial bool) (model.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	filter := mongoFilter(q, id)
	doc := toDocument(rec)
	delete(doc, mongoIDKey)

	var (
		res *mongo.UpdateResult
		err error
	)
	if partial {
		if len(doc) == 0 {
			return s.Get(ctx, q, id)
		}
		res, err = s.coll(q.Model).UpdateOne(ctx, filter, bson.M{"$set": doc})
	} else {
		res, err = s.coll(q.Model).ReplaceOne(ctx, filter, doc)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "updating %s '%s'", q.Model.VerboseName, id)
	}
	if res.MatchedCount == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}

	return s.Get(ctx, All(q.Model), id)
}

func (s *mongoStore) Delete(ctx context.Context, q *Query, id string) error {
	if err := q.Validate(); err != nil {
		return errors.WithStack(err)
	}

	res, err := s.coll(q.Model).DeleteOne(ctx, mongoFilter(q, id))
	if err != nil {
		return errors.Wrapf(err, "deleting %s '%s'", q.Model.VerboseName, id)
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}

	return nil
}

func (s *mongoStore) Close(ctx context.Context) error {
	return errors.Wrap(s.client.Disconnect(ctx), "disconnecting from the database")
}

package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/sells-group/leadsync/internal/model"
)

const leadsCollection = "leads"

// leadDocument is the BSON shape of a lead.
type leadDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Name        string        `bson:"name"`
	Country     string        `bson:"country"`
	Probability float64       `bson:"probability"`
	Status      string        `bson:"status"`
	Synced      bool          `bson:"synced"`
	CreatedAt   time.Time     `bson:"createdAt"`
}

func (d leadDocument) toLead() model.Lead {
	return model.Lead{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Country:     d.Country,
		Probability: d.Probability,
		Status:      model.Status(d.Status),
		Synced:      d.Synced,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to uri and uses the leads collection of database.
func NewMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, eris.Wrap(err, "mongo: connect")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, eris.Wrap(err, "mongo: ping")
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(leadsCollection),
	}, nil
}

func (s *MongoStore) Migrate(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "synced", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return persistErr("migrate", eris.Wrap(err, "mongo: create indexes"))
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return persistErr("ping", eris.Wrap(s.client.Ping(ctx, readpref.Primary()), "mongo: ping"))
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return eris.Wrap(s.client.Disconnect(ctx), "mongo: disconnect")
}

func (s *MongoStore) CreateLead(ctx context.Context, n model.NewLead) (*model.Lead, error) {
	if err := n.Validate(); err != nil {
		return nil, persistErr("create lead", err)
	}

	doc := leadDocument{
		ID:          bson.NewObjectID(),
		Name:        strings.TrimSpace(n.Name),
		Country:     n.Country,
		Probability: n.Probability,
		Status:      string(n.Status),
		// BSON dates carry milliseconds.
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, persistErr("create lead", eris.Wrap(err, "mongo: insert lead"))
	}

	lead := doc.toLead()
	return &lead, nil
}

func (s *MongoStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	leads, err := s.find(ctx, listFilter(filter), newestFirst)
	if err != nil {
		return nil, persistErr("list leads", eris.Wrap(err, "mongo: list leads"))
	}
	return leads, nil
}

func (s *MongoStore) FindUnsyncedVerified(ctx context.Context) ([]model.Lead, error) {
	leads, err := s.find(ctx, unsyncedVerifiedFilter(), oldestFirst)
	if err != nil {
		return nil, persistErr("find unsynced", eris.Wrap(err, "mongo: find unsynced verified"))
	}
	return leads, nil
}

func (s *MongoStore) MarkSynced(ctx context.Context, id string) (bool, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, persistErr("mark synced", eris.Wrapf(ErrLeadNotFound, "mongo: invalid lead id %q", id))
	}

	res, err := s.coll.UpdateOne(ctx, claimFilter(oid), bson.D{{Key: "$set", Value: bson.D{{Key: "synced", Value: true}}}})
	if err != nil {
		return false, persistErr("mark synced", eris.Wrapf(err, "mongo: mark synced %s", id))
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return false, persistErr("mark synced", eris.Wrapf(err, "mongo: lookup lead %s", id))
	}
	if n == 0 {
		return false, persistErr("mark synced", eris.Wrapf(ErrLeadNotFound, "mongo: lead %s", id))
	}
	return false, nil
}

var (
	newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	oldestFirst = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
)

func (s *MongoStore) find(ctx context.Context, filter, sort bson.D) ([]model.Lead, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx) //nolint:errcheck

	var docs []leadDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	leads := make([]model.Lead, 0, len(docs))
	for _, d := range docs {
		leads = append(leads, d.toLead())
	}
	return leads, nil
}

func listFilter(f LeadFilter) bson.D {
	if f.Status == "" {
		return bson.D{}
	}
	return bson.D{{Key: "status", Value: string(f.Status)}}
}

func unsyncedVerifiedFilter() bson.D {
	return bson.D{
		{Key: "status", Value: string(model.StatusVerified)},
		{Key: "synced", Value: false},
	}
}

// claimFilter matches the lead only while it is still unsynced, which makes
// the update a single-document compare-and-set.
func claimFilter(id bson.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "synced", Value: false}}
}

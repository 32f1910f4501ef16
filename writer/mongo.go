package writer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/log"
)

const (
	mongoConnectTimeout = 10 * time.Second
	mongoBatchTimeout   = 60 * time.Second
)

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// Mongo inserts each record as one document.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo connects to the server and checks the connection.
func NewMongo(ctx context.Context, conf MongoConfig) (*Mongo, error) {
	cctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(conf.URI))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to MongoDB")
	}
	if err := client.Ping(cctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "pinging MongoDB")
	}
	log.Printf("[info] Connected to MongoDB, inserting into %s.%s", conf.Database, conf.Collection)
	return &Mongo{
		client: client,
		coll:   client.Database(conf.Database).Collection(conf.Collection),
	}, nil
}

func (m *Mongo) Name() string {
	return "mongodb"
}

func (m *Mongo) Write(ctx context.Context, records []*element.Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, rec := range records {
		docs[i] = rec.Document()
	}

	ctx, cancel := context.WithTimeout(ctx, mongoBatchTimeout)
	defer cancel()
	// records are independent, a duplicate must not stop the rest of the batch
	_, err := m.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return errors.Wrapf(err, "inserting %d documents", len(docs))
	}
	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

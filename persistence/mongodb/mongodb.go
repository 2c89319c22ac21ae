// Package mongodb implements the remote persistence gateway on a MongoDB deployment.
package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/multierr"

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/persistence"
)

func init() {
	persistence.RegisterBackend(persistence.BackendMongoDB, func(
		ctx context.Context,
		conf persistence.Config,
		logger logging.Logger,
	) (persistence.Gateway, error) {
		return NewGateway(ctx, conf.URI, conf.Database, logger)
	})
}

// Collection names.
const (
	TreesCollection     = "trees"
	LocationsCollection = "locations"
)

type treeDocument struct {
	Project                string `bson:"project"`
	Index                  int    `bson:"index"`
	persistence.TreeRecord `bson:",inline"`
}

type locationDocument struct {
	Project              string `bson:"_id"`
	persistence.Location `bson:",inline"`
}

// Gateway stores projects in two collections: one document per tree and one per project location.
type Gateway struct {
	client    *mongo.Client
	trees     *mongo.Collection
	locations *mongo.Collection
	logger    logging.Logger
}

// NewGateway connects to uri and checks the primary is reachable.
func NewGateway(ctx context.Context, uri, database string, logger logging.Logger) (*Gateway, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, persistence.NewRemoteError("connect", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, persistence.NewRemoteError("ping", multierr.Combine(err, client.Disconnect(ctx)))
	}
	return newGateway(ctx, client, database, logger)
}

func newGateway(ctx context.Context, client *mongo.Client, database string, logger logging.Logger) (*Gateway, error) {
	db := client.Database(database)
	gw := &Gateway{
		client:    client,
		trees:     db.Collection(TreesCollection),
		locations: db.Collection(LocationsCollection),
		logger:    logger,
	}
	_, err := gw.trees.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "project", Value: 1}, {Key: "index", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, persistence.NewRemoteError("create index", multierr.Combine(err, client.Disconnect(ctx)))
	}
	logger.Debugw("connected to mongodb", "database", database)
	return gw, nil
}

// TreeCount returns the number of trees stored for project.
func (gw *Gateway) TreeCount(ctx context.Context, project string) (int, error) {
	n, err := gw.trees.CountDocuments(ctx, bson.M{"project": project})
	if err != nil {
		return 0, persistence.NewRemoteError("tree count", err)
	}
	return int(n), nil
}

// WriteTree stores record at index, replacing what was there.
func (gw *Gateway) WriteTree(ctx context.Context, project string, index int, record persistence.TreeRecord) error {
	_, err := gw.trees.ReplaceOne(ctx,
		bson.M{"project": project, "index": index},
		treeDocument{Project: project, Index: index, TreeRecord: record},
		options.Replace().SetUpsert(true))
	return persistence.NewRemoteError("write tree", err)
}

// WriteLocation records where project was planted.
func (gw *Gateway) WriteLocation(ctx context.Context, project string, loc persistence.Location) error {
	_, err := gw.locations.ReplaceOne(ctx,
		bson.M{"_id": project},
		locationDocument{Project: project, Location: loc},
		options.Replace().SetUpsert(true))
	return persistence.NewRemoteError("write location", err)
}

// ReadTrees returns the trees of project in index order.
func (gw *Gateway) ReadTrees(ctx context.Context, project string) ([]persistence.TreeRecord, error) {
	cursor, err := gw.trees.Find(ctx, bson.M{"project": project}, options.Find().SetSort(bson.D{{Key: "index", Value: 1}}))
	if err != nil {
		return nil, persistence.NewRemoteError("read trees", err)
	}
	var docs []treeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, persistence.NewRemoteError("read trees", err)
	}
	out := make([]persistence.TreeRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.TreeRecord)
	}
	return out, nil
}

// ReadLocation returns the recorded location of project, or nil.
func (gw *Gateway) ReadLocation(ctx context.Context, project string) (*persistence.Location, error) {
	var doc locationDocument
	err := gw.locations.FindOne(ctx, bson.M{"_id": project}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence.NewRemoteError("read location", err)
	}
	return &doc.Location, nil
}

// Close disconnects the client.
func (gw *Gateway) Close(ctx context.Context) error {
	if err := gw.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}

package repomanager

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/uhhharsh/VidShare/internal/server/repositories/users"
)

// DefaultMongoDatabase is used when the DSN names no database.
const DefaultMongoDatabase = "vidshare"

type MongoRepositoryManager struct {
	client *mongo.Client
	users  *users.MongoRepository
}

func NewMongoRepositoryManager(client *mongo.Client, database string) *MongoRepositoryManager {
	return &MongoRepositoryManager{
		client: client,
		users:  users.NewMongoRepository(client.Database(database)),
	}
}

// OpenMongo connects to MongoDB. The database name is taken from the DSN
// path.
func OpenMongo(ctx context.Context, dsn string) (*MongoRepositoryManager, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(dsn))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return NewMongoRepositoryManager(client, mongoDatabase(dsn)), nil
}

func mongoDatabase(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return DefaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultMongoDatabase
}

func (m *MongoRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	return m.users.EnsureIndexes(ctx)
}

func (m *MongoRepositoryManager) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

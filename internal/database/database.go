package database

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/yukikurage/taskhub-api/internal/config"
	"github.com/yukikurage/taskhub-api/internal/logging"
	"github.com/yukikurage/taskhub-api/internal/repository"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectTimeout = 10 * time.Second

// Store bundles the repositories of one storage backend
type Store struct {
	Users repository.UserRepository
	Tasks repository.TaskRepository

	ping    func(ctx context.Context) error
	migrate func(ctx context.Context) error
	close   func(ctx context.Context) error
}

// Ping checks that the backend is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Migrate creates schemas or indexes required by the repositories
func (s *Store) Migrate(ctx context.Context) error {
	return s.migrate(ctx)
}

// Close releases the connection pool
func (s *Store) Close(ctx context.Context) error {
	return s.close(ctx)
}

// Open connects to the backend selected by cfg.DBDriver
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Store, error) {
	if cfg.DBDriver == config.DriverMongo {
		client, err := ConnectMongo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("Database connection established", "driver", cfg.DBDriver, "database", cfg.MongoDatabase)
		return NewMongoStore(client, client.Database(cfg.MongoDatabase)), nil
	}

	db, err := Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Database connection established", "driver", cfg.DBDriver)
	return NewGormStore(db), nil
}

// Connect opens a relational database through GORM
func Connect(cfg *config.Config, logger *log.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBName,
		)
		dialector = mysql.Open(dsn)
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
		)
		dialector = postgres.Open(dsn)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported relational driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, GormConfig(logging.GormLogger(logger, !cfg.IsProduction())))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// GormConfig returns the GORM settings shared by the server and tests
func GormConfig(l logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:         l,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ConnectMongo opens and verifies a MongoDB client
func ConnectMongo(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

// NewGormStore wires the GORM repositories around db
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Users: repository.NewUserRepository(db),
		Tasks: repository.NewTaskRepository(db),
		ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		migrate: func(ctx context.Context) error {
			return Migrate(db.WithContext(ctx))
		},
		close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// NewMongoStore wires the MongoDB repositories around db
func NewMongoStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		Users: repository.NewMongoUserRepository(db),
		Tasks: repository.NewMongoTaskRepository(db),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		migrate: func(ctx context.Context) error {
			return EnsureIndexes(ctx, db)
		},
		close: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	}
}

package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	types "github.com/seekwell/seekwell-backend/internal/domain"
	"github.com/seekwell/seekwell-backend/internal/pkg/envutil"
	"github.com/seekwell/seekwell-backend/internal/pkg/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	driver := strings.ToLower(envutil.Str("DB_DRIVER", "postgres"))

	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		// Local development path; jsonb columns degrade to TEXT.
		path := envutil.Str("SQLITE_PATH", "seekwell.db")
		serviceLog.Info("Connecting to SQLite...", "path", path)
		db, err = gorm.Open(sqlite.Open(path), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
	default:
		postgresHost := envutil.Str("POSTGRES_HOST", "localhost")
		postgresPort := envutil.Str("POSTGRES_PORT", "5432")
		postgresUser := envutil.Str("POSTGRES_USER", "postgres")
		postgresPassword := envutil.Str("POSTGRES_PASSWORD", "")
		postgresName := envutil.Str("POSTGRES_NAME", "seekwell")
		sslMode := envutil.Str("POSTGRES_SSLMODE", "disable")

		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			postgresUser, postgresPassword, postgresHost, postgresPort, postgresName, sslMode)

		serviceLog.Info("Connecting to Postgres...", "host", postgresHost, "db", postgresName)
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
	}
	if err != nil {
		serviceLog.Error("Failed to connect to database", "driver", driver, "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver != "sqlite" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
			return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
		}
	}

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	err := s.db.AutoMigrate(
		&types.Chat{},
		&types.SharedChat{},
		&types.Message{},
		&types.MessageAttachment{},
		&types.Trace{},
		&types.Agent{},
		&types.UserPersonalization{},
	)
	if err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}

	if s.db.Dialector.Name() != "postgres" {
		return nil
	}

	s.log.Info("Configuring foreign key relationships...")
	constraints := []struct {
		name string
		sql  string
	}{
		{
			name: "fk_messages_chat_id",
			sql: `ALTER TABLE "messages"
				ADD CONSTRAINT "fk_messages_chat_id"
				FOREIGN KEY ("chat_id") REFERENCES "chats"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_chat_traces_chat_id",
			sql: `ALTER TABLE "chat_traces"
				ADD CONSTRAINT "fk_chat_traces_chat_id"
				FOREIGN KEY ("chat_id") REFERENCES "chats"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_message_attachments_chat_id",
			sql: `ALTER TABLE "message_attachments"
				ADD CONSTRAINT "fk_message_attachments_chat_id"
				FOREIGN KEY ("chat_id") REFERENCES "chats"("id")
				ON DELETE CASCADE`,
		},
		{
			name: "fk_shared_chats_chat_id",
			sql: `ALTER TABLE "shared_chats"
				ADD CONSTRAINT "fk_shared_chats_chat_id"
				FOREIGN KEY ("chat_id") REFERENCES "chats"("id")
				ON DELETE CASCADE`,
		},
	}
	for _, c := range constraints {
		var exists bool
		checkSQL := `SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`
		if err := s.db.Raw(checkSQL, c.name).Scan(&exists).Error; err != nil {
			return fmt.Errorf("failed to check constraint %s: %w", c.name, err)
		}
		if exists {
			continue
		}
		if err := s.db.Exec(c.sql).Error; err != nil {
			return fmt.Errorf("failed to add %s: %w", c.name, err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ambnuf14-max/saes-discord-bot/pkg/controlplane/models"
)

// ErrSchemaIncomplete is returned by Healthcheck when a rolesync table is
// missing, e.g. after a manual drop or a migration run against another
// database.
var ErrSchemaIncomplete = errors.New("rolesync schema incomplete")

type tabler interface {
	TableName() string
}

// Healthcheck pings the database and checks that the mapping, sync and
// settings tables created by New are still present.
func (s *GORMStore) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s database unreachable: %w", s.config.Type, err)
	}

	migrator := s.db.WithContext(ctx).Migrator()
	for _, m := range models.AllModels() {
		if migrator.HasTable(m) {
			continue
		}
		name := fmt.Sprintf("%T", m)
		if t, ok := m.(tabler); ok {
			name = t.TableName()
		}
		return fmt.Errorf("%w: table %s missing", ErrSchemaIncomplete, name)
	}
	return nil
}

func (s *GORMStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

var _ Store = (*GORMStore)(nil)

package testutil

import (
	"fmt"
	"strings"
	"testing"

	"knowledge-ledger/pkg/db"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dsnName = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// NewTestDB opens a shared-cache in-memory SQLite database named after the test, migrates
// models and closes it on cleanup. Unique violations are translated to gorm.ErrDuplicatedKey
// exactly as in production.
func NewTestDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", dsnName.Replace(t.Name()))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         db.NewZapGormLogger(zap.NewNop(), logger.Silent, false),
		TranslateError: true,
	})
	require.NoError(t, err, "open test database")
	require.NoError(t, conn.AutoMigrate(models...), "migrate test database")

	sqlDB, err := conn.DB()
	require.NoError(t, err)

	// a single connection serialises writers the way one sqlite file would
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return conn
}

func NewTestNode(t testing.TB) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

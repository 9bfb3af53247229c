package sqlite_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pbinitiative/zenexec/pkg/storage"
	"github.com/pbinitiative/zenexec/pkg/storage/sqlite"
	"github.com/pbinitiative/zenexec/pkg/storage/storagetest"
	"github.com/pbinitiative/zenexec/pkg/zenflake"
	"github.com/stretchr/testify/require"
)

func TestSqliteStorage(t *testing.T) {
	keys, err := zenflake.NewGenerator(1)
	require.NoError(t, err)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	s, err := sqlite.Open(dsn, keys)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var store storage.Storage = s
	tester := storagetest.StorageTester{}

	tests := tester.GetTests()
	tester.PrepareTestData(store, t)
	for name, testFunc := range tests {
		t.Run(name, testFunc(store, t))
	}
}

func TestSchemaIsIdempotent(t *testing.T) {
	keys, err := zenflake.NewGenerator(2)
	require.NoError(t, err)
	dsn := fmt.Sprintf("file:%s/zenexec.db", t.TempDir())

	first, err := sqlite.Open(dsn, keys)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.Open(dsn, keys)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

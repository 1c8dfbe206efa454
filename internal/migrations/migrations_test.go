package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDriverURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/bloom?sslmode=disable", driverURL("postgres://u:p@db:5432/bloom?sslmode=disable"))
	require.Equal(t, "pgx5://db/bloom", driverURL("postgresql://db/bloom"))
	require.Equal(t, "pgx5://db/bloom", driverURL("pgx5://db/bloom"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	require.Equal(t, ups, downs)
}

func TestSchemaCoversStores(t *testing.T) {
	var all strings.Builder
	entries, err := fs.ReadDir(files, "sql")
	require.NoError(t, err)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			b, err := fs.ReadFile(files, "sql/"+e.Name())
			require.NoError(t, err)
			all.Write(b)
		}
	}
	for _, table := range []string{"tax_rates", "discounts", "discount_usages", "delivery_settings", "delivery_zones", "customers"} {
		require.Contains(t, all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}

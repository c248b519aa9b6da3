package database

import (
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus-fulfillment/internal/pkg/bootstrap"
)

func TestNormalizeMySQLDSN_EnablesParseTime(t *testing.T) {
	dsn, err := normalizeMySQLDSN("root:pw@tcp(localhost:3306)/fulfillment")
	require.NoError(t, err)

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "fulfillment", parsed.DBName)
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	_, err := Open(bootstrap.DatabaseConfig{Driver: "sqlite"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

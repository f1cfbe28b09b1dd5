package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfigAppliesOptions(t *testing.T) {
	config, err := poolConfig(PoolOptions{
		DSN:             "postgres://ledgerview:pw@db.internal:5432/ledgerview?sslmode=disable",
		MaxConns:        12,
		MinConns:        2,
		MaxConnIdleTime: time.Minute,
		ConnectTimeout:  3 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(12), config.MaxConns)
	assert.Equal(t, int32(2), config.MinConns)
	assert.Equal(t, time.Minute, config.MaxConnIdleTime)
	assert.Equal(t, 3*time.Second, config.ConnConfig.ConnectTimeout)
	assert.Equal(t, "db.internal", config.ConnConfig.Host)
}

func TestPoolConfigKeepsDSNSettingsByDefault(t *testing.T) {
	config, err := poolConfig(PoolOptions{DSN: "postgres://localhost/ledgerview?pool_max_conns=7"})
	require.NoError(t, err)
	assert.Equal(t, int32(7), config.MaxConns)
}

func TestPoolConfigRejectsInvalidOptions(t *testing.T) {
	_, err := poolConfig(PoolOptions{})
	assert.Error(t, err)

	_, err = poolConfig(PoolOptions{DSN: "postgres://localhost/ledgerview", MaxConns: 2, MinConns: 5})
	assert.Error(t, err)

	_, err = poolConfig(PoolOptions{DSN: "postgres://localhost:notaport/x"})
	assert.Error(t, err)
}

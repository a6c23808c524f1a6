package database

import (
	"context"
	"testing"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/lacuina/content-service/internal/config"
)

func TestConnectRedis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := ConnectRedis(context.Background(), config.RedisConfig{Host: m.Host(), Port: m.Port()})
	require.NotNil(t, client)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
}

func TestConnectRedisDegrades(t *testing.T) {
	require.Nil(t, ConnectRedis(context.Background(), config.RedisConfig{}))

	m, err := mr.Run()
	require.NoError(t, err)
	host, port := m.Host(), m.Port()
	m.Close()
	require.Nil(t, ConnectRedis(context.Background(), config.RedisConfig{Host: host, Port: port}))
}

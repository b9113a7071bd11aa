package client

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap-auth/internal/config"
)

func TestExtractHostPort(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://clickhouse", "clickhouse:8123"},
		{"https://clickhouse", "clickhouse:8443"},
		{"clickhouse:9000", "clickhouse:9000"},
		{"http://10.0.0.5:9000", "10.0.0.5:9000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractHostPort(tt.url), tt.url)
	}
	assert.Equal(t, "clickhouse", extractHostname("https://clickhouse"))
}

func TestClickHouseOptions(t *testing.T) {
	cfg := &config.Config{
		Environment: config.EnvDevelopment,
		Clickhouse:  config.ClickhouseConfig{URL: "http://clickhouse", Database: "audit", Username: "writer"},
	}
	opts, err := clickhouseOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"clickhouse:8123"}, opts.Addr)
	assert.Equal(t, "audit", opts.Auth.Database)
	assert.Nil(t, opts.TLS)

	cfg.Clickhouse.URL = "https://clickhouse.internal"
	opts, err = clickhouseOptions(cfg)
	require.NoError(t, err)
	require.NotNil(t, opts.TLS)
	assert.Equal(t, "clickhouse.internal", opts.TLS.ServerName)

	cfg.Clickhouse.CAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = clickhouseOptions(cfg)
	assert.Error(t, err)
}

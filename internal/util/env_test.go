package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("SKILLSWAP_TEST_STR", "value")
	t.Setenv("SKILLSWAP_TEST_INT", "42")
	t.Setenv("SKILLSWAP_TEST_BAD_INT", "forty")
	t.Setenv("SKILLSWAP_TEST_BOOL", "true")
	t.Setenv("SKILLSWAP_TEST_DUR", "15m")
	t.Setenv("SKILLSWAP_TEST_SLICE", "log, kafka,,clickhouse ")

	assert.Equal(t, "value", GetEnv("SKILLSWAP_TEST_STR", "default"))
	assert.Equal(t, "default", GetEnv("SKILLSWAP_TEST_MISSING", "default"))
	assert.Equal(t, 42, GetEnvInt("SKILLSWAP_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("SKILLSWAP_TEST_BAD_INT", 1))
	assert.True(t, GetEnvBool("SKILLSWAP_TEST_BOOL", false))
	assert.Equal(t, 15*time.Minute, GetEnvDuration("SKILLSWAP_TEST_DUR", time.Second))
	assert.Equal(t, []string{"log", "kafka", "clickhouse"}, GetEnvSlice("SKILLSWAP_TEST_SLICE", nil))
	assert.Equal(t, []string{"log"}, GetEnvSlice("SKILLSWAP_TEST_MISSING", []string{"log"}))
}

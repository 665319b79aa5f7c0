package utils

import (
	"path/filepath"
	"testing"

	"github.com/TIANLI0/ShipKit/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesMD5(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", BytesMD5(nil))
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", BytesMD5([]byte("hello")))
}

func TestContentSeedStableAndPositive(t *testing.T) {
	a := ContentSeed([]byte("grid-a"))
	b := ContentSeed([]byte("grid-b"))

	assert.Equal(t, a, ContentSeed([]byte("grid-a")))
	assert.NotEqual(t, a, b)
	assert.Positive(t, a)
	assert.Positive(t, b)
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, NewRunID())
}

func TestInitLoggerWithFile(t *testing.T) {
	logCfg := config.LogConfig{File: filepath.Join(t.TempDir(), "shipkit.log"), MaxSizeMB: 1}
	require.NoError(t, InitLogger("release", logCfg))
	Logger.Info("hello")
	Sync()
	assert.NotNil(t, Logger)
}

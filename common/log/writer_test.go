package log

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewWriter(t *testing.T) {
	_, err := NewWriter(&WriterConfig{})
	assert.Error(t, err)

	w, err := NewWriter(&WriterConfig{
		Filename: filepath.Join(t.TempDir(), "engine.log"),
		Compress: true,
	})
	require.NoError(t, err)
	lj, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, DefaultFileMaxSizeMB, lj.MaxSize)
	assert.Equal(t, DefaultFileMaxBackups, lj.MaxBackups)
	assert.True(t, lj.Compress)

	w, err = NewWriter(&WriterConfig{
		Filename:   filepath.Join(t.TempDir(), "engine.log"),
		MaxSize:    10,
		MaxBackups: 2,
	})
	require.NoError(t, err)
	lj = w.(*lumberjack.Logger)
	assert.Equal(t, 10, lj.MaxSize)
	assert.Equal(t, 2, lj.MaxBackups)
}

package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/ligerdb/logging"
)

func TestNewStderrOnly(t *testing.T) {
	log, err := logging.New(logging.Config{})
	require.NoError(t, err)
	require.NotNil(t, log)
	log.Info("hello")
}

func TestNewWithFileSinkWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "module.log")

	log, err := logging.New(logging.Config{FilePath: path, Debug: true})
	require.NoError(t, err)
	log.Debug("wrote to file sink")
	require.NoError(t, log.Sync())

	_, err = os.Stat(path)
	require.NoError(t, err)
}

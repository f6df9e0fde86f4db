package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transfer.ini")
	contents := "downloadDirectory = /tmp/incoming\noverwrite = supersede\n\n[zmodem]\nuseCrc32 = false\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/incoming", c.DownloadDirectory)
	require.Equal(t, "supersede", c.Overwrite)
	require.False(t, c.Zmodem.UseCRC32)
	// Unset fields keep their Default() value.
	require.Equal(t, "crc", c.Xmodem.Flavor)
}

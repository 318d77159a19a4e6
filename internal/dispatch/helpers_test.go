package dispatch

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func sandbox(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/plugin/plugin.js", []byte("exports.run_it = null;"), 0o644))

	return fs
}

package sitemap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

func TestWriteSet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "public")
	set, err := newTestBuilder(t, nil).Build(bilingualHome())
	require.NoError(t, err)

	res := WriteSet(dir, set, testLogger())
	require.NoError(t, res.Err)
	require.Len(t, res.Written, 2)

	for _, f := range res.Written {
		data, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.Bytes, len(data))
		sum, err := utils.FileSHA256(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.SHA256, sum)
	}
	assert.FileExists(t, filepath.Join(dir, "sitemap.xml"))
	assert.FileExists(t, filepath.Join(dir, "sitemap-index.xml"))
}

func TestWriteSet_IsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on the index name makes that one write fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, IndexFile), 0755))

	set, err := newTestBuilder(t, nil).Build(bilingualHome())
	require.NoError(t, err)

	res := WriteSet(dir, set, testLogger())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, utils.ErrFilesystem)
	require.Len(t, res.Written, 1)
	assert.Equal(t, "sitemap.xml", res.Written[0].Name)
}

func TestWriteSet_PrunesOtherLayout(t *testing.T) {
	dir := t.TempDir()
	for _, stale := range []string{"sitemap-1.xml", "sitemap-2.xml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, stale), []byte("old"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sitemap-main.xml"), []byte("category"), 0644))

	set, err := newTestBuilder(t, nil).Build(bilingualHome())
	require.NoError(t, err)
	require.NoError(t, WriteSet(dir, set, testLogger()).Err)

	assert.NoFileExists(t, filepath.Join(dir, "sitemap-1.xml"))
	assert.NoFileExists(t, filepath.Join(dir, "sitemap-2.xml"))
	assert.FileExists(t, filepath.Join(dir, "sitemap-main.xml"), "category files are not part of the main series")

	split, err := newTestBuilder(t, func(o *Options) { o.MaxURLsPerFile = 1 }).Build(bilingualHome())
	require.NoError(t, err)
	require.NoError(t, WriteSet(dir, split, testLogger()).Err)

	assert.NoFileExists(t, filepath.Join(dir, "sitemap.xml"))
	assert.FileExists(t, filepath.Join(dir, "sitemap-1.xml"))
	assert.FileExists(t, filepath.Join(dir, "sitemap-2.xml"))
}

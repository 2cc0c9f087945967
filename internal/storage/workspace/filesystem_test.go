package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *FileSystemWorkspace {
	t.Helper()
	ws, err := NewFileSystemWorkspace(t.TempDir())
	require.NoError(t, err)
	return ws
}

func TestDocumentLayout(t *testing.T) {
	ws := newTestWorkspace(t)

	docDir := ws.DocumentDir("doc-001")
	assert.Equal(t, filepath.Join(ws.BasePath(), "doc-001"), docDir)
	assert.Equal(t, filepath.Join(docDir, "video_optimized.mp4"), ws.OptimizedVideoPath("doc-001"))
}

func TestScreenshotsDirCreated(t *testing.T) {
	ws := newTestWorkspace(t)

	dir, err := ws.ScreenshotsDir("doc-001")
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestScreenshotRelativePathUsesForwardSlashes(t *testing.T) {
	ws := newTestWorkspace(t)
	assert.Equal(t, "../screenshots/figure_01_t5s.png", ws.ScreenshotRelativePath("figure_01_t5s.png"))
}

func TestWriteDocument(t *testing.T) {
	ws := newTestWorkspace(t)

	path, err := ws.WriteDocument("doc-001", "zh-TW", "# 操作手冊\n內容")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.DocumentDir("doc-001"), "zh-TW", "document.md"), path)
	// DocumentPath 與 WriteDocument 指向同一個位置
	assert.Equal(t, ws.DocumentPath("doc-001", "zh-TW"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# 操作手冊\n內容", string(content))
}

func TestWriteDocumentRequiresIdentifiers(t *testing.T) {
	ws := newTestWorkspace(t)

	_, err := ws.WriteDocument("", "zh-TW", "內容")
	assert.Error(t, err)
	_, err = ws.WriteDocument("doc-001", "", "內容")
	assert.Error(t, err)
}

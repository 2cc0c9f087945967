package workspace

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// FileSystemWorkspace 負責每份文件在磁碟上的固定佈局：
//
//	{document}/metadata.json
//	{document}/video_optimized.mp4
//	{document}/screenshots/figure_NN_tSSs.png
//	{document}/{language_code}/document.md
//
// 截圖目錄由所有輸出語言共用（圖片與語言無關），只建立一次、之後引用。
type FileSystemWorkspace struct {
	basePath string
}

// NewFileSystemWorkspace 建立 FileSystemWorkspace 實例，必要時建立根目錄
func NewFileSystemWorkspace(basePath string) (*FileSystemWorkspace, error) {
	if basePath == "" {
		return nil, fmt.Errorf("文件工作區的 basePath 不得為空")
	}
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("無法取得文件工作區的絕對路徑 '%s': %w", basePath, err)
	}
	if _, err := os.Stat(absBasePath); os.IsNotExist(err) {
		log.Printf("資訊：文件工作區根目錄 '%s' 不存在，正在嘗試建立...", absBasePath)
		if err := os.MkdirAll(absBasePath, os.ModePerm); err != nil {
			return nil, fmt.Errorf("無法建立文件工作區根目錄 '%s': %w", absBasePath, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("檢查文件工作區根目錄 '%s' 時發生錯誤: %w", absBasePath, err)
	}
	log.Printf("資訊：FileSystemWorkspace 初始化成功，根路徑設定為: %s", absBasePath)
	return &FileSystemWorkspace{basePath: absBasePath}, nil
}

// BasePath 回傳工作區根目錄
func (w *FileSystemWorkspace) BasePath() string {
	return w.basePath
}

// DocumentDir 回傳指定文件的目錄路徑
func (w *FileSystemWorkspace) DocumentDir(docID string) string {
	return filepath.Join(w.basePath, filepath.Clean(docID))
}

// OptimizedVideoPath 回傳壓縮產物的固定路徑
func (w *FileSystemWorkspace) OptimizedVideoPath(docID string) string {
	return filepath.Join(w.DocumentDir(docID), "video_optimized.mp4")
}

// ScreenshotsDir 回傳（並確保存在）截圖目錄
func (w *FileSystemWorkspace) ScreenshotsDir(docID string) (string, error) {
	dir := filepath.Join(w.DocumentDir(docID), "screenshots")
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("無法建立截圖目錄 '%s': %w", dir, err)
	}
	return dir, nil
}

// ScreenshotRelativePath 回傳語言目錄中的文件引用截圖時使用的相對路徑
func (w *FileSystemWorkspace) ScreenshotRelativePath(fileName string) string {
	return filepath.ToSlash(filepath.Join("..", "screenshots", fileName))
}

// DocumentPath 回傳指定語言的文件輸出路徑 {document}/{lang}/document.md
func (w *FileSystemWorkspace) DocumentPath(docID string, languageCode string) string {
	return filepath.Join(w.DocumentDir(docID), filepath.Clean(languageCode), "document.md")
}

// WriteDocument 將產生的文件內容寫入 {document}/{lang}/document.md，回傳寫入路徑
func (w *FileSystemWorkspace) WriteDocument(docID string, languageCode string, content string) (string, error) {
	if docID == "" || languageCode == "" {
		return "", fmt.Errorf("WriteDocument 參數 docID 與 languageCode 不得為空")
	}
	langDir := filepath.Join(w.DocumentDir(docID), filepath.Clean(languageCode))
	if err := os.MkdirAll(langDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("無法建立語言目錄 '%s': %w", langDir, err)
	}
	targetPath := filepath.Join(langDir, "document.md")
	log.Printf("資訊：正在將產生的文件寫入 '%s'", targetPath)
	if err := os.WriteFile(targetPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("無法寫入文件檔案到 '%s': %w", targetPath, err)
	}
	return targetPath, nil
}

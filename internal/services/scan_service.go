package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"VideoDocGen/internal/config"
	"VideoDocGen/internal/models"
)

// supportedVideoExtensions 是掃描時接受的影片副檔名（小寫）
var supportedVideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".ts":   true,
	".webm": true,
	".flv":  true,
	".wmv":  true,
	".mpeg": true,
	".mpg":  true,
}

// ScanService 負責掃描影片庫並將新影片登記為待處理文件。
// 文件識別碼取自影片檔名（不含副檔名），重複掃描是冪等的。
type ScanService struct {
	cfg      *config.Config
	registry DocRegistry
}

// NewScanService 建立 ScanService 實例
func NewScanService(cfg *config.Config, registry DocRegistry) (*ScanService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ScanService：設定不得為空")
	}
	if registry == nil {
		return nil, fmt.Errorf("ScanService：文件登記儲存庫不得為空")
	}
	log.Println("資訊：ScanService 初始化完成。")
	return &ScanService{cfg: cfg, registry: registry}, nil
}

// DocIDFromPath 從影片路徑推導文件識別碼：檔名去副檔名，空白換成底線。
// 掃描服務與命令列工具共用同一個推導，同一部影片永遠對應同一個文件目錄。
func DocIDFromPath(videoPath string) string {
	base := filepath.Base(videoPath)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.TrimSpace(id), " ", "_")
}

// scanVideoFiles 遍歷影片庫根目錄，回傳所有支援格式的影片路徑
func (s *ScanService) scanVideoFiles() ([]string, error) {
	root := s.cfg.Library.VideoPath
	if root == "" {
		return nil, fmt.Errorf("未設定影片庫路徑 (library.videoPath)")
	}
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Printf("警告：[ScanService] 無法存取 '%s': %v\n", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if supportedVideoExtensions[strings.ToLower(filepath.Ext(path))] {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("掃描影片庫 '%s' 失敗: %w", root, err)
	}
	return found, nil
}

// Run 執行影片庫掃描任務：新影片以 pending 狀態登記，已登記的影片不受影響
func (s *ScanService) Run() error {
	log.Println("資訊：[ScanService] 開始掃描影片庫...")
	videoPaths, err := s.scanVideoFiles()
	if err != nil {
		log.Printf("錯誤：[ScanService] %v", err)
		return err
	}

	var registered int
	for _, videoPath := range videoPaths {
		docID := DocIDFromPath(videoPath)
		if docID == "" {
			log.Printf("警告：[ScanService] 無法從 '%s' 推導文件識別碼，略過。\n", videoPath)
			continue
		}
		existing, err := s.registry.GetDocumentByDocID(docID)
		if err != nil {
			log.Printf("錯誤：[ScanService] 查詢文件 '%s' 失敗: %v\n", docID, err)
			continue
		}
		if existing != nil {
			continue
		}
		rec := &models.DocumentRecord{
			DocID:     docID,
			VideoPath: videoPath,
			Format:    s.cfg.Pipeline.DefaultFormat,
		}
		if _, err := s.registry.FindOrCreateDocument(rec); err != nil {
			log.Printf("錯誤：[ScanService] 登記文件 '%s' 失敗: %v\n", docID, err)
			continue
		}
		registered++
		log.Printf("資訊：[ScanService] 已登記新影片 '%s' (文件: %s)\n", videoPath, docID)
	}
	log.Printf("資訊：[ScanService] 掃描完成。共 %d 部影片，新登記 %d 份文件。\n", len(videoPaths), registered)
	return nil
}

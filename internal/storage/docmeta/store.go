package docmeta

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"VideoDocGen/internal/models"
)

const metadataFileName = "metadata.json"

// Store 是每份文件的 metadata.json 儲存庫：載入、就地修改、完整重寫。
// 每份文件各有一把鎖以維持單一寫入者；同一文件的流程不得並行執行。
type Store struct {
	basePath string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore 建立 Store 實例，必要時建立文件工作區根目錄
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("docmeta.Store：basePath 不得為空")
	}
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("無法取得文件工作區的絕對路徑 '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBasePath, os.ModePerm); err != nil {
		return nil, fmt.Errorf("無法建立文件工作區根目錄 '%s': %w", absBasePath, err)
	}
	log.Printf("資訊：docmeta.Store 初始化成功，文件工作區: %s\n", absBasePath)
	return &Store{basePath: absBasePath, locks: make(map[string]*sync.Mutex)}, nil
}

// lockFor 回傳指定文件的互斥鎖
func (s *Store) lockFor(docID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[docID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[docID] = l
	}
	return l
}

// MetadataPath 回傳指定文件的 metadata.json 絕對路徑
func (s *Store) MetadataPath(docID string) string {
	return filepath.Join(s.basePath, docID, metadataFileName)
}

// Load 讀取文件的 DocumentMetadata；檔案不存在時回傳以 videoPath 初始化的新記錄
func (s *Store) Load(docID string, videoPath string) (*models.DocumentMetadata, error) {
	lock := s.lockFor(docID)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(s.MetadataPath(docID))
	if os.IsNotExist(err) {
		now := time.Now()
		return &models.DocumentMetadata{
			VideoPath:          videoPath,
			CreatedAt:          now,
			UpdatedAt:          now,
			LanguagesGenerated: []string{},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("讀取 metadata.json 失敗 (文件 %s): %w", docID, err)
	}

	var meta models.DocumentMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("解析 metadata.json 失敗 (文件 %s): %w", docID, err)
	}
	if meta.LanguagesGenerated == nil {
		meta.LanguagesGenerated = []string{}
	}
	return &meta, nil
}

// Save 將 DocumentMetadata 完整重寫到磁碟：先寫入同目錄的暫存檔再原子改名，
// 確保 metadata.json 永遠不會出現部分寫入。
func (s *Store) Save(docID string, meta *models.DocumentMetadata) error {
	lock := s.lockFor(docID)
	lock.Lock()
	defer lock.Unlock()

	meta.UpdatedAt = time.Now()

	targetPath := s.MetadataPath(docID)
	targetDir := filepath.Dir(targetPath)
	if err := os.MkdirAll(targetDir, os.ModePerm); err != nil {
		return fmt.Errorf("無法建立文件目錄 '%s': %w", targetDir, err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化 metadata 失敗 (文件 %s): %w", docID, err)
	}

	tmpFile, err := os.CreateTemp(targetDir, metadataFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("無法建立暫存檔 (文件 %s): %w", docID, err)
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("寫入暫存檔失敗 (文件 %s): %w", docID, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("關閉暫存檔失敗 (文件 %s): %w", docID, err)
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("改名 metadata.json 失敗 (文件 %s): %w", docID, err)
	}
	return nil
}

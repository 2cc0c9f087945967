package mysql

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"VideoDocGen/internal/config"
	"VideoDocGen/internal/models"
)

// MySQLStore 是文件排程記帳的儲存庫。documents 資料表只記錄排程狀態，
// 流程的昂貴中間結果一律以每份文件的 metadata.json 為準。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 建立 MySQLStore 實例
func NewMySQLStore(dbCfg config.DatabaseConfig) (*MySQLStore, error) {
	if dbCfg.Driver != "mysql" {
		return nil, fmt.Errorf("不支援的資料庫驅動程式: %s", dbCfg.Driver)
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local", dbCfg.User, dbCfg.Password, dbCfg.Host, dbCfg.Port, dbCfg.DBName)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("開啟資料庫連線失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("無法連線到資料庫 (ping 失敗): %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	log.Println("資訊：成功連線到 MySQL 資料庫。")
	return &MySQLStore{db: db}, nil
}

// Close 關閉資料庫連線
func (s *MySQLStore) Close() error {
	if s.db != nil {
		log.Println("資訊：正在關閉 MySQL 資料庫連線...")
		return s.db.Close()
	}
	return nil
}

// FindOrCreateDocument 依 doc_id 查找文件記錄，不存在時以 pending 狀態建立，回傳資料庫 ID
func (s *MySQLStore) FindOrCreateDocument(rec *models.DocumentRecord) (int64, error) {
	if rec == nil || rec.DocID == "" {
		return 0, fmt.Errorf("FindOrCreateDocument：DocID 不得為空")
	}

	var existingID int64
	err := s.db.QueryRow("SELECT id FROM documents WHERE doc_id = ?", rec.DocID).Scan(&existingID)
	if err == nil {
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("查詢文件記錄 '%s' 失敗: %w", rec.DocID, err)
	}

	status := rec.Status
	if status == "" {
		status = models.StatusPending
	}
	registeredAt := rec.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now()
	}
	result, err := s.db.Exec(
		"INSERT INTO documents (doc_id, video_path, status, language, format, registered_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.DocID, rec.VideoPath, string(status), rec.Language, rec.Format, registeredAt,
	)
	if err != nil {
		return 0, fmt.Errorf("建立文件記錄 '%s' 失敗: %w", rec.DocID, err)
	}
	newID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("取得文件記錄 '%s' 的新 ID 失敗: %w", rec.DocID, err)
	}
	log.Printf("資訊：[MySQLStore] 已登記新文件 '%s' (ID: %d)。\n", rec.DocID, newID)
	return newID, nil
}

// GetDocumentByDocID 依 doc_id 讀取單筆文件記錄，不存在時回傳 nil
func (s *MySQLStore) GetDocumentByDocID(docID string) (*models.DocumentRecord, error) {
	row := s.db.QueryRow(
		"SELECT id, doc_id, video_path, status, language, format, registered_at, processed_at, error_message FROM documents WHERE doc_id = ?",
		docID,
	)
	rec, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("讀取文件記錄 '%s' 失敗: %w", docID, err)
	}
	return rec, nil
}

// GetDocumentsPendingGeneration 讀取等待產生文件的記錄，依登記時間由舊到新
func (s *MySQLStore) GetDocumentsPendingGeneration(limit int) ([]models.DocumentRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		"SELECT id, doc_id, video_path, status, language, format, registered_at, processed_at, error_message FROM documents WHERE status = ? ORDER BY registered_at ASC LIMIT ?",
		string(models.StatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("查詢待處理文件失敗: %w", err)
	}
	defer rows.Close()

	var records []models.DocumentRecord
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("讀取待處理文件列失敗: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("逐列讀取待處理文件時發生錯誤: %w", err)
	}
	return records, nil
}

// UpdateDocumentStatus 更新文件的排程狀態與處理時間、錯誤訊息
func (s *MySQLStore) UpdateDocumentStatus(id int64, status models.PipelineStatus, processedAt sql.NullTime, errorMessage sql.NullString) error {
	_, err := s.db.Exec(
		"UPDATE documents SET status = ?, processed_at = ?, error_message = ? WHERE id = ?",
		string(status), processedAt, errorMessage, id,
	)
	if err != nil {
		return fmt.Errorf("更新文件 ID %d 狀態為 '%s' 失敗: %w", id, status, err)
	}
	return nil
}

// rowScanner 讓 *sql.Row 與 *sql.Rows 共用同一個掃描函式
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.DocumentRecord, error) {
	var rec models.DocumentRecord
	var status string
	if err := row.Scan(
		&rec.ID, &rec.DocID, &rec.VideoPath, &status, &rec.Language, &rec.Format,
		&rec.RegisteredAt, &rec.ProcessedAt, &rec.ErrorMessage,
	); err != nil {
		return nil, err
	}
	rec.Status = models.PipelineStatus(status)
	return &rec, nil
}

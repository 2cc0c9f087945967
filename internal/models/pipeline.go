package models

import (
	"database/sql"
	"fmt"
	"time"
)

// PipelineStatus 定義文件產生流程的狀態機狀態
type PipelineStatus string

const (
	StatusPending             PipelineStatus = "pending"
	StatusAnalyzing           PipelineStatus = "analyzing"
	StatusAnalyzingComplete   PipelineStatus = "analyzing_complete"
	StatusIdentifying         PipelineStatus = "identifying"
	StatusIdentifyingComplete PipelineStatus = "identifying_complete"
	StatusGenerating          PipelineStatus = "generating"
	StatusCompleted           PipelineStatus = "completed"
	StatusError               PipelineStatus = "error"
)

// PipelineState 是各階段共同累積的狀態記錄；每個階段成功時回填自己的欄位，
// 失敗時設定 Status = StatusError 與 Error，下游階段必須原封不動短路傳遞。
type PipelineState struct {
	Status      PipelineStatus
	DocumentID  string
	Language    string
	Format      DocumentFormat
	Video       *VideoAsset
	SourcePath  string // 擷取截圖使用的影片路徑（優先使用壓縮後產物）
	Analysis    *AnalysisRecord
	Keyframes   []Keyframe
	Screenshots []Screenshot
	OutputPath  string
	Error       string
}

// Failed 回報狀態機是否已進入終止的 error 狀態
func (s *PipelineState) Failed() bool {
	return s.Status == StatusError
}

// Fail 將狀態機轉入 error 狀態並記錄原因
func (s *PipelineState) Fail(err error) {
	s.Status = StatusError
	s.Error = err.Error()
}

// DocumentRecord 對應 documents 資料表的一列，僅作排程記帳用；
// 流程的昂貴中間結果一律以 metadata.json 為準。
type DocumentRecord struct {
	ID           int64
	DocID        string
	VideoPath    string
	Status       PipelineStatus
	Language     string
	Format       string
	RegisteredAt time.Time
	ProcessedAt  sql.NullTime
	ErrorMessage sql.NullString
}

// --- 錯誤分類：致命錯誤中止流程，可吸收錯誤記錄後局部恢復 ---

// InputError 表示來源影片缺失或無法讀取，致命且不重試
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("輸入影片錯誤 (%s): %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// TransportError 表示模型或上傳服務呼叫失敗，對本次執行致命，原樣呈現、不自動重試
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("傳輸錯誤 (%s): %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GenerationQualityError 表示產生的文件過短或為空，視為回應損壞而非內容問題
type GenerationQualityError struct {
	Length    int
	MinLength int
}

func (e *GenerationQualityError) Error() string {
	return fmt.Sprintf("產生的文件過短 (%d 字元，最少需 %d 字元)，視為產生失敗", e.Length, e.MinLength)
}

// FrameReadError 表示指定時間點無法取得影格；呼叫端以略過該圖的方式局部恢復
type FrameReadError struct {
	Timestamp float64
	Err       error
}

func (e *FrameReadError) Error() string {
	return fmt.Sprintf("無法在 %.2f 秒處讀取影格: %v", e.Timestamp, e.Err)
}

func (e *FrameReadError) Unwrap() error { return e.Err }

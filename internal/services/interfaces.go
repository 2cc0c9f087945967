package services

import (
	"context"
	"database/sql"

	"VideoDocGen/internal/models"
)

// ModelClient 定義流程對雲端模型的依賴（影片理解與文件產生）
type ModelClient interface {
	AnalyzeVideo(ctx context.Context, videoPath string, prompt string) (string, error)
	GenerateDocument(ctx context.Context, prompt string) (string, error)
	AnalysisModelName() string
}

// VideoProber 定義容器元數據的讀取操作
type VideoProber interface {
	Probe(ctx context.Context, videoPath string) (*models.VideoAsset, error)
}

// VideoOptimizer 定義壓縮決策與重新編碼操作
type VideoOptimizer interface {
	ShouldOptimize(asset *models.VideoAsset) bool
	Optimize(ctx context.Context, asset *models.VideoAsset, outputPath string) (*models.OptimizationRecord, error)
}

// FrameExtractor 定義單一影格的擷取操作
type FrameExtractor interface {
	FileName(figureNumber int, timestampSeconds float64) string
	Extract(ctx context.Context, videoPath string, timestampSeconds float64, outputPath string) error
}

// DocRegistry 定義文件排程記帳的儲存操作
type DocRegistry interface {
	FindOrCreateDocument(rec *models.DocumentRecord) (int64, error)
	GetDocumentByDocID(docID string) (*models.DocumentRecord, error)
	GetDocumentsPendingGeneration(limit int) ([]models.DocumentRecord, error)
	UpdateDocumentStatus(id int64, status models.PipelineStatus, processedAt sql.NullTime, errorMessage sql.NullString) error
}

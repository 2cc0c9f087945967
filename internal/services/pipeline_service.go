package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"VideoDocGen/internal/config"
	"VideoDocGen/internal/keyframes"
	"VideoDocGen/internal/models"
	"VideoDocGen/internal/storage/docmeta"
	"VideoDocGen/internal/storage/workspace"
)

// PipelineService 是三階段文件產生流程的協調者：
// analyzing -> identifying -> generating，每個昂貴階段執行前先查詢 metadata 快取，
// 成功後立即持久化，讓同一文件的其他語言重跑不再重複影片分析與影格擷取。
type PipelineService struct {
	cfg       *config.Config
	meta      *docmeta.Store
	ws        *workspace.FileSystemWorkspace
	model     ModelClient
	registry  DocRegistry
	prober    VideoProber
	optimizer VideoOptimizer
	extractor FrameExtractor
	parser    *keyframes.Parser
}

// NewPipelineService 建立 PipelineService 實例
func NewPipelineService(
	cfg *config.Config,
	meta *docmeta.Store,
	ws *workspace.FileSystemWorkspace,
	model ModelClient,
	registry DocRegistry,
	prober VideoProber,
	optimizer VideoOptimizer,
	extractor FrameExtractor,
) (*PipelineService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("PipelineService：設定不得為空")
	}
	if meta == nil {
		return nil, fmt.Errorf("PipelineService：metadata 儲存庫不得為空")
	}
	if ws == nil {
		return nil, fmt.Errorf("PipelineService：文件工作區不得為空")
	}
	if model == nil {
		return nil, fmt.Errorf("PipelineService：模型客戶端不得為空")
	}
	if prober == nil || optimizer == nil || extractor == nil {
		return nil, fmt.Errorf("PipelineService：影片處理元件不得為空")
	}
	log.Println("資訊：PipelineService 初始化完成。")
	return &PipelineService{
		cfg:       cfg,
		meta:      meta,
		ws:        ws,
		model:     model,
		registry:  registry,
		prober:    prober,
		optimizer: optimizer,
		extractor: extractor,
		parser:    keyframes.NewParser(cfg.Pipeline.MinKeyframeIntervalSec),
	}, nil
}

// RunDocument 對單一文件執行完整流程並回傳最終狀態。
// 同一文件目錄的流程不得並行執行（metadata 的讀改寫由呼叫端序列化）。
func (s *PipelineService) RunDocument(ctx context.Context, docID string, videoPath string, language string, format models.DocumentFormat) (*models.PipelineState, error) {
	log.Printf("資訊：[PipelineService] 開始處理文件 '%s' (語言: %s, 格式: %s)\n", docID, language, format)

	meta, err := s.meta.Load(docID, videoPath)
	if err != nil {
		return nil, fmt.Errorf("載入文件 '%s' 的 metadata 失敗: %w", docID, err)
	}

	state := &models.PipelineState{
		Status:     models.StatusPending,
		DocumentID: docID,
		Language:   language,
		Format:     format,
	}

	var stageErr error
	if err := s.runAnalysisStage(ctx, state, meta, videoPath); err != nil {
		stageErr = err
	}
	if err := s.runIdentifyStage(state, meta); err != nil && stageErr == nil {
		stageErr = err
	}
	if err := s.runGenerationStage(ctx, state, meta); err != nil && stageErr == nil {
		stageErr = err
	}

	if state.Failed() {
		log.Printf("錯誤：[PipelineService] 文件 '%s' 處理失敗: %s\n", docID, state.Error)
		return state, stageErr
	}
	log.Printf("資訊：[PipelineService] 文件 '%s' 處理完成，輸出: %s\n", docID, state.OutputPath)
	return state, nil
}

// runAnalysisStage 執行影片分析階段：探測、條件式壓縮、上傳決策與模型呼叫。
// 快取中已有完整分析結果時整個階段被跳過，直接代入快取輸出。
func (s *PipelineService) runAnalysisStage(ctx context.Context, state *models.PipelineState, meta *models.DocumentMetadata, videoPath string) error {
	if state.Failed() {
		return nil
	}
	state.Status = models.StatusAnalyzing

	if meta.VideoAnalysis != nil && meta.VideoMetadata != nil {
		log.Printf("資訊：[PipelineService] 文件 '%s' 已有快取的影片分析，跳過分析階段。\n", state.DocumentID)
		state.Video = meta.VideoMetadata
		state.Analysis = meta.VideoAnalysis
		state.SourcePath = s.preferredSourcePath(meta, videoPath)
		state.Status = models.StatusAnalyzingComplete
		return nil
	}

	asset, err := s.prober.Probe(ctx, videoPath)
	if err != nil {
		state.Fail(err)
		return err
	}
	meta.VideoMetadata = asset
	if err := s.meta.Save(state.DocumentID, meta); err != nil {
		state.Fail(err)
		return err
	}
	log.Printf("資訊：[PipelineService] 影片探測完成：%.1f 秒, %dx%d, %.2f MB\n",
		asset.DurationSeconds, asset.Width, asset.Height, float64(asset.SizeBytes)/1024/1024)

	// 壓縮是盡力而為的成本最佳化：失敗時記錄警告並退回原始影片，永不中止流程
	if meta.Optimized == nil && s.optimizer.ShouldOptimize(asset) {
		record, optErr := s.optimizer.Optimize(ctx, asset, s.ws.OptimizedVideoPath(state.DocumentID))
		if optErr != nil {
			log.Printf("警告：[PipelineService] 影片壓縮失敗，退回原始影片: %v\n", optErr)
		} else {
			meta.Optimized = record
			if err := s.meta.Save(state.DocumentID, meta); err != nil {
				state.Fail(err)
				return err
			}
		}
	}

	sourcePath := s.preferredSourcePath(meta, videoPath)
	analysisCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Pipeline.AnalysisTimeoutMins)*time.Minute)
	rawText, err := s.model.AnalyzeVideo(analysisCtx, sourcePath, buildAnalysisPrompt(state.Format))
	cancel()
	if err != nil {
		// 失敗的分析不留下部分快取
		state.Fail(err)
		return err
	}

	record := &models.AnalysisRecord{
		RawText:           rawText,
		ModelUsed:         s.model.AnalysisModelName(),
		DetectedLanguages: parseDetectedLanguages(rawText),
	}
	meta.VideoAnalysis = record
	// 先持久化再交棒，階段之間的中斷不會迫使重新分析
	if err := s.meta.Save(state.DocumentID, meta); err != nil {
		state.Fail(err)
		return err
	}

	state.Video = asset
	state.Analysis = record
	state.SourcePath = sourcePath
	state.Status = models.StatusAnalyzingComplete
	return nil
}

// preferredSourcePath 回傳截圖與上傳使用的影片路徑：壓縮產物存在時優先使用
// （部分來源容器的解碼相容性較差）。
func (s *PipelineService) preferredSourcePath(meta *models.DocumentMetadata, videoPath string) string {
	if meta.Optimized != nil && meta.Optimized.Performed {
		if _, err := os.Stat(meta.Optimized.OutputPath); err == nil {
			return meta.Optimized.OutputPath
		}
		log.Printf("警告：[PipelineService] metadata 記錄的壓縮產物 '%s' 不存在，改用原始影片。\n", meta.Optimized.OutputPath)
	}
	return videoPath
}

// runIdentifyStage 執行 Keyframe 識別階段。Keyframe 是可從分析文字完整重建的
// 衍生資料，快取只是最佳化；快取存在時跳過解析。
func (s *PipelineService) runIdentifyStage(state *models.PipelineState, meta *models.DocumentMetadata) error {
	if state.Failed() {
		return nil
	}
	state.Status = models.StatusIdentifying

	if meta.Keyframes != nil {
		log.Printf("資訊：[PipelineService] 文件 '%s' 已有快取的 Keyframe (%d 筆)，跳過識別階段。\n", state.DocumentID, len(meta.Keyframes))
		state.Keyframes = meta.Keyframes
		state.Status = models.StatusIdentifyingComplete
		return nil
	}

	duration := 0.0
	if state.Video != nil {
		duration = state.Video.DurationSeconds
	}
	extracted := s.parser.Extract(state.Analysis.RawText, duration)
	if extracted == nil {
		extracted = []models.Keyframe{}
	}
	meta.Keyframes = extracted
	if err := s.meta.Save(state.DocumentID, meta); err != nil {
		state.Fail(err)
		return err
	}

	state.Keyframes = extracted
	state.Status = models.StatusIdentifyingComplete
	return nil
}

// runGenerationStage 擷取截圖並呼叫文件產生模型，將結果寫入語言專屬的輸出位置。
// 單一截圖失敗以略過該圖的方式局部恢復；文件過短視為產生失敗（致命）。
func (s *PipelineService) runGenerationStage(ctx context.Context, state *models.PipelineState, meta *models.DocumentMetadata) error {
	if state.Failed() {
		return nil
	}
	state.Status = models.StatusGenerating

	// 同一語言的重跑不重新呼叫產生模型：既有文件就是快取輸出
	if meta.HasLanguage(state.Language) {
		existingPath := s.ws.DocumentPath(state.DocumentID, state.Language)
		if info, err := os.Stat(existingPath); err == nil && info.Size() > 0 {
			log.Printf("資訊：[PipelineService] 文件 '%s' 的語言 '%s' 已產生過，重用既有文件: %s\n", state.DocumentID, state.Language, existingPath)
			state.OutputPath = existingPath
			state.Status = models.StatusCompleted
			return nil
		}
		log.Printf("警告：[PipelineService] metadata 記錄語言 '%s' 已產生，但輸出文件 '%s' 不存在，重新產生。\n", state.Language, existingPath)
	}

	screenshots, err := s.extractScreenshots(ctx, state)
	if err != nil {
		state.Fail(err)
		return err
	}
	state.Screenshots = screenshots

	prompt := buildGenerationPrompt(state.Analysis.RawText, screenshots, state.Language, state.Format)
	generationCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Pipeline.GenerationTimeoutMins)*time.Minute)
	content, err := s.model.GenerateDocument(generationCtx, prompt)
	cancel()
	if err != nil {
		state.Fail(err)
		return err
	}

	if length := utf8.RuneCountInString(content); length < s.cfg.Pipeline.MinDocumentChars {
		qualityErr := &models.GenerationQualityError{Length: length, MinLength: s.cfg.Pipeline.MinDocumentChars}
		state.Fail(qualityErr)
		return qualityErr
	}

	outputPath, err := s.ws.WriteDocument(state.DocumentID, state.Language, content)
	if err != nil {
		state.Fail(err)
		return err
	}

	meta.AddLanguage(state.Language)
	if err := s.meta.Save(state.DocumentID, meta); err != nil {
		state.Fail(err)
		return err
	}

	state.OutputPath = outputPath
	state.Status = models.StatusCompleted
	return nil
}

// extractScreenshots 為每個保留的 Keyframe 擷取一張截圖。檔名是決定性的，
// 已存在的截圖直接重用；單張失敗記錄警告並略過，不中止文件產生。
func (s *PipelineService) extractScreenshots(ctx context.Context, state *models.PipelineState) ([]models.Screenshot, error) {
	if len(state.Keyframes) == 0 {
		return nil, nil
	}
	screenshotsDir, err := s.ws.ScreenshotsDir(state.DocumentID)
	if err != nil {
		return nil, err
	}

	var screenshots []models.Screenshot
	for i, kf := range state.Keyframes {
		figureNumber := i + 1
		fileName := s.extractor.FileName(figureNumber, kf.TimestampSeconds)
		outputPath := filepath.Join(screenshotsDir, fileName)

		if err := s.extractor.Extract(ctx, state.SourcePath, kf.TimestampSeconds, outputPath); err != nil {
			var frameErr *models.FrameReadError
			if errors.As(err, &frameErr) {
				log.Printf("警告：[PipelineService] 略過第 %d 張截圖 (%s): %v\n", figureNumber, kf.TimestampFormatted, err)
				continue
			}
			return nil, err
		}

		screenshots = append(screenshots, models.Screenshot{
			FigureNumber:     figureNumber,
			FilePath:         outputPath,
			RelativePath:     s.ws.ScreenshotRelativePath(fileName),
			TimestampSeconds: kf.TimestampSeconds,
			Description:      kf.Description,
		})
	}
	return screenshots, nil
}

// RunPending 由排程器觸發：取出待處理的文件記錄，對每份文件依設定的目標語言
// 依序執行流程（文件之間互相獨立，單一文件內嚴格循序）。
func (s *PipelineService) RunPending() error {
	if s.registry == nil {
		return fmt.Errorf("PipelineService：未設定文件登記儲存庫，無法執行排程流程")
	}
	log.Println("資訊：[PipelineService] 開始處理待產生的文件...")
	pending, err := s.registry.GetDocumentsPendingGeneration(10)
	if err != nil {
		log.Printf("錯誤：[PipelineService] 讀取待處理文件失敗: %v", err)
		return err
	}
	if len(pending) == 0 {
		log.Println("資訊：[PipelineService] 沒有等待處理的文件。")
		return nil
	}

	languages := s.cfg.Pipeline.Languages
	if len(languages) == 0 {
		languages = []string{"zh-TW"}
	}

	var successCount, failCount int
	for _, rec := range pending {
		format := ParseFormat(rec.Format)
		targets := languages
		if rec.Language != "" {
			targets = []string{rec.Language}
		}
		if err := s.registry.UpdateDocumentStatus(rec.ID, models.StatusGenerating, sql.NullTime{Time: time.Now(), Valid: true}, sql.NullString{}); err != nil {
			log.Printf("錯誤：[PipelineService] 更新文件 '%s' 狀態失敗: %v\n", rec.DocID, err)
		}

		var runErr error
		for _, language := range targets {
			if _, err := s.RunDocument(context.Background(), rec.DocID, rec.VideoPath, language, format); err != nil {
				runErr = err
				break
			}
		}

		now := sql.NullTime{Time: time.Now(), Valid: true}
		if runErr != nil {
			failCount++
			if err := s.registry.UpdateDocumentStatus(rec.ID, models.StatusError, now, sql.NullString{String: runErr.Error(), Valid: true}); err != nil {
				log.Printf("錯誤：[PipelineService] 更新文件 '%s' 狀態失敗: %v\n", rec.DocID, err)
			}
			continue
		}
		successCount++
		if err := s.registry.UpdateDocumentStatus(rec.ID, models.StatusCompleted, now, sql.NullString{}); err != nil {
			log.Printf("錯誤：[PipelineService] 更新文件 '%s' 狀態失敗: %v\n", rec.DocID, err)
		}
	}
	log.Printf("資訊：[PipelineService] 待處理文件批次完成。成功: %d, 失敗: %d\n", successCount, failCount)
	return nil
}

// ParseFormat 將格式字串轉為 DocumentFormat，未知格式記錄警告後退回 manual
func ParseFormat(format string) models.DocumentFormat {
	switch models.DocumentFormat(format) {
	case models.FormatManual, models.FormatQuickGuide, models.FormatIncidentReport, models.FormatProgressReport:
		return models.DocumentFormat(format)
	default:
		if format != "" {
			log.Printf("警告：[PipelineService] 未知的文件格式 '%s'，改用 manual。\n", format)
		}
		return models.FormatManual
	}
}

// Run 實現排程任務入口
func (s *PipelineService) Run() error {
	return s.RunPending()
}

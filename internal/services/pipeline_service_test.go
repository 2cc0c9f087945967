package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VideoDocGen/internal/config"
	"VideoDocGen/internal/models"
	"VideoDocGen/internal/storage/docmeta"
	"VideoDocGen/internal/storage/workspace"
)

const stubAnalysisText = `這部影片展示了系統的操作流程。

## Keyframes

Timestamp: 0:05
Description: 登入頁面

Timestamp: 0:30
Description: 儀表板總覽

## Language Detection

Audio Language: zh-TW
UI Text Language: en
Confidence: high
`

type stubModel struct {
	analyzeCalls  int
	generateCalls int
	analysisText  string
	document      string
	analyzeErr    error
	generateErr   error
}

func (m *stubModel) AnalyzeVideo(ctx context.Context, videoPath string, prompt string) (string, error) {
	m.analyzeCalls++
	if m.analyzeErr != nil {
		return "", m.analyzeErr
	}
	return m.analysisText, nil
}

func (m *stubModel) GenerateDocument(ctx context.Context, prompt string) (string, error) {
	m.generateCalls++
	if m.generateErr != nil {
		return "", m.generateErr
	}
	return m.document, nil
}

func (m *stubModel) AnalysisModelName() string { return "stub-model" }

type stubProber struct {
	asset *models.VideoAsset
	err   error
}

func (p *stubProber) Probe(ctx context.Context, videoPath string) (*models.VideoAsset, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.asset, nil
}

type stubOptimizer struct {
	shouldOptimize bool
	record         *models.OptimizationRecord
	err            error
}

func (o *stubOptimizer) ShouldOptimize(asset *models.VideoAsset) bool { return o.shouldOptimize }

func (o *stubOptimizer) Optimize(ctx context.Context, asset *models.VideoAsset, outputPath string) (*models.OptimizationRecord, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.record, nil
}

type stubExtractor struct {
	extractCalls int
	failAt       map[float64]bool
}

func (e *stubExtractor) FileName(figureNumber int, timestampSeconds float64) string {
	return fmt.Sprintf("figure_%02d_t%ds.png", figureNumber, int(timestampSeconds))
}

func (e *stubExtractor) Extract(ctx context.Context, videoPath string, timestampSeconds float64, outputPath string) error {
	e.extractCalls++
	if e.failAt[timestampSeconds] {
		return &models.FrameReadError{Timestamp: timestampSeconds, Err: fmt.Errorf("無法解碼影格")}
	}
	return os.WriteFile(outputPath, []byte("png"), 0644)
}

func testPipelineConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			Optimize: config.OptimizeConfig{
				SizeThresholdMB:       15,
				DurationThresholdSecs: 120,
				TargetWidth:           1280,
				TargetHeight:          720,
				TargetFPS:             15,
				CRF:                   28,
			},
			Upload:                 config.UploadConfig{InlineThresholdMB: 20, PollIntervalSecs: 10, MaxWaitSecs: 300},
			MinKeyframeIntervalSec: 5,
			MaxScreenshotWidth:     1280,
			MinDocumentChars:       20,
			AnalysisTimeoutMins:    20,
			GenerationTimeoutMins:  5,
			Languages:              []string{"zh-TW"},
			DefaultFormat:          "manual",
		},
	}
}

type pipelineFixture struct {
	svc       *PipelineService
	model     *stubModel
	extractor *stubExtractor
	meta      *docmeta.Store
	ws        *workspace.FileSystemWorkspace
}

func newPipelineFixture(t *testing.T, model *stubModel, prober *stubProber, optimizer *stubOptimizer, extractor *stubExtractor) *pipelineFixture {
	t.Helper()
	base := t.TempDir()
	meta, err := docmeta.NewStore(base)
	require.NoError(t, err)
	ws, err := workspace.NewFileSystemWorkspace(base)
	require.NoError(t, err)

	svc, err := NewPipelineService(testPipelineConfig(), meta, ws, model, nil, prober, optimizer, extractor)
	require.NoError(t, err)
	return &pipelineFixture{svc: svc, model: model, extractor: extractor, meta: meta, ws: ws}
}

func defaultModel() *stubModel {
	return &stubModel{
		analysisText: stubAnalysisText,
		document:     strings.Repeat("文件內容段落。", 10),
	}
}

func defaultProber() *stubProber {
	return &stubProber{asset: &models.VideoAsset{
		Path:            "/videos/demo.mp4",
		SizeBytes:       5 * 1024 * 1024,
		DurationSeconds: 60,
		Width:           1280,
		Height:          720,
	}}
}

func TestRunDocumentFullPipeline(t *testing.T) {
	f := newPipelineFixture(t, defaultModel(), defaultProber(), &stubOptimizer{}, &stubExtractor{})

	state, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, state.Status)
	require.Len(t, state.Keyframes, 2)
	require.Len(t, state.Screenshots, 2)
	assert.Equal(t, 1, state.Screenshots[0].FigureNumber)
	assert.Equal(t, "../screenshots/figure_01_t5s.png", state.Screenshots[0].RelativePath)

	content, err := os.ReadFile(state.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "文件內容段落")

	meta, err := f.meta.Load("demo", "/videos/demo.mp4")
	require.NoError(t, err)
	require.NotNil(t, meta.VideoAnalysis)
	assert.Equal(t, "stub-model", meta.VideoAnalysis.ModelUsed)
	assert.True(t, meta.HasLanguage("zh-TW"))
}

func TestRunDocumentSecondLanguageReusesCache(t *testing.T) {
	model := defaultModel()
	f := newPipelineFixture(t, model, defaultProber(), &stubOptimizer{}, &stubExtractor{})

	_, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	state, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "en", models.FormatManual)
	require.NoError(t, err)

	// 第二個語言跳過分析與識別階段：昂貴的影片分析只發生一次
	assert.Equal(t, 1, model.analyzeCalls)
	assert.Equal(t, 2, model.generateCalls)
	assert.Equal(t, models.StatusCompleted, state.Status)

	meta, err := f.meta.Load("demo", "/videos/demo.mp4")
	require.NoError(t, err)
	assert.True(t, meta.HasLanguage("zh-TW"))
	assert.True(t, meta.HasLanguage("en"))
}

func TestRunDocumentSameLanguageRerunReusesDocument(t *testing.T) {
	model := defaultModel()
	extractor := &stubExtractor{}
	f := newPipelineFixture(t, model, defaultProber(), &stubOptimizer{}, extractor)

	first, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	firstContent, err := os.ReadFile(first.OutputPath)
	require.NoError(t, err)
	extractCallsAfterFirst := extractor.extractCalls

	second, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, second.Status)
	assert.Equal(t, first.OutputPath, second.OutputPath)

	// 同一語言的重跑是純快取命中：不多一次模型呼叫、不多一次截圖擷取，輸出逐位元相同
	assert.Equal(t, 1, model.analyzeCalls)
	assert.Equal(t, 1, model.generateCalls)
	assert.Equal(t, extractCallsAfterFirst, extractor.extractCalls)

	secondContent, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, firstContent, secondContent)
}

func TestRunDocumentRegeneratesWhenOutputFileMissing(t *testing.T) {
	model := defaultModel()
	f := newPipelineFixture(t, model, defaultProber(), &stubOptimizer{}, &stubExtractor{})

	first, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	require.NoError(t, os.Remove(first.OutputPath))

	// metadata 記錄語言已產生但輸出文件被外部移除：重新產生而非回報不存在的路徑
	second, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, second.Status)
	assert.Equal(t, 2, model.generateCalls)

	content, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

func TestRunDocumentProbeFailureIsFatal(t *testing.T) {
	model := defaultModel()
	prober := &stubProber{err: &models.InputError{Path: "/videos/missing.mp4", Err: os.ErrNotExist}}
	f := newPipelineFixture(t, model, prober, &stubOptimizer{}, &stubExtractor{})

	state, err := f.svc.RunDocument(context.Background(), "missing", "/videos/missing.mp4", "zh-TW", models.FormatManual)
	require.Error(t, err)
	assert.True(t, state.Failed())
	assert.Equal(t, 0, model.analyzeCalls)

	var inputErr *models.InputError
	assert.ErrorAs(t, err, &inputErr)
}

func TestRunDocumentAnalyzeFailureLeavesNoAnalysisCache(t *testing.T) {
	model := defaultModel()
	model.analyzeErr = &models.TransportError{Operation: "AnalyzeVideo", Err: fmt.Errorf("連線中斷")}
	f := newPipelineFixture(t, model, defaultProber(), &stubOptimizer{}, &stubExtractor{})

	state, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.Error(t, err)
	assert.True(t, state.Failed())

	// 失敗的分析不得留下部分快取，下次重跑必須重新分析
	meta, err := f.meta.Load("demo", "/videos/demo.mp4")
	require.NoError(t, err)
	assert.Nil(t, meta.VideoAnalysis)
}

func TestRunDocumentShortDocumentIsQualityError(t *testing.T) {
	model := defaultModel()
	model.document = "太短"
	f := newPipelineFixture(t, model, defaultProber(), &stubOptimizer{}, &stubExtractor{})

	state, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.Error(t, err)
	assert.True(t, state.Failed())

	var qualityErr *models.GenerationQualityError
	require.ErrorAs(t, err, &qualityErr)
	assert.Equal(t, 2, qualityErr.Length)

	// 品質不合格的文件不得標記語言為已產生
	meta, err := f.meta.Load("demo", "/videos/demo.mp4")
	require.NoError(t, err)
	assert.False(t, meta.HasLanguage("zh-TW"))
}

func TestRunDocumentSkipsFailedScreenshots(t *testing.T) {
	extractor := &stubExtractor{failAt: map[float64]bool{5: true}}
	f := newPipelineFixture(t, defaultModel(), defaultProber(), &stubOptimizer{}, extractor)

	state, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, state.Status)

	// 第一張截圖失敗被略過，第二張保留原本的編號（不重新編號）
	require.Len(t, state.Screenshots, 1)
	assert.Equal(t, 2, state.Screenshots[0].FigureNumber)
	assert.Equal(t, "../screenshots/figure_02_t30s.png", state.Screenshots[0].RelativePath)
}

func TestRunPendingDrainsRegistry(t *testing.T) {
	base := t.TempDir()
	meta, err := docmeta.NewStore(base)
	require.NoError(t, err)
	ws, err := workspace.NewFileSystemWorkspace(base)
	require.NoError(t, err)

	registry := newFakeRegistry()
	_, err = registry.FindOrCreateDocument(&models.DocumentRecord{DocID: "demo", VideoPath: "/videos/demo.mp4", Format: "manual"})
	require.NoError(t, err)
	_, err = registry.FindOrCreateDocument(&models.DocumentRecord{DocID: "broken", VideoPath: "/videos/broken.mp4", Format: "manual"})
	require.NoError(t, err)

	model := defaultModel()
	prober := &stubProber{asset: defaultProber().asset}
	svc, err := NewPipelineService(testPipelineConfig(), meta, ws, model, registry, prober, &stubOptimizer{}, &stubExtractor{})
	require.NoError(t, err)

	require.NoError(t, svc.RunPending())

	demo, err := registry.GetDocumentByDocID("demo")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, demo.Status)
	assert.True(t, demo.ProcessedAt.Valid)

	broken, err := registry.GetDocumentByDocID("broken")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, broken.Status)
}

func TestRunPendingRecordsFailure(t *testing.T) {
	base := t.TempDir()
	meta, err := docmeta.NewStore(base)
	require.NoError(t, err)
	ws, err := workspace.NewFileSystemWorkspace(base)
	require.NoError(t, err)

	registry := newFakeRegistry()
	_, err = registry.FindOrCreateDocument(&models.DocumentRecord{DocID: "missing", VideoPath: "/videos/missing.mp4", Format: "manual"})
	require.NoError(t, err)

	prober := &stubProber{err: &models.InputError{Path: "/videos/missing.mp4", Err: os.ErrNotExist}}
	svc, err := NewPipelineService(testPipelineConfig(), meta, ws, defaultModel(), registry, prober, &stubOptimizer{}, &stubExtractor{})
	require.NoError(t, err)

	require.NoError(t, svc.RunPending())

	rec, err := registry.GetDocumentByDocID("missing")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, rec.Status)
	assert.True(t, rec.ErrorMessage.Valid)
	assert.Contains(t, rec.ErrorMessage.String, "輸入影片錯誤")
}

func TestRunDocumentOptimizerFailureDegradesToOriginal(t *testing.T) {
	optimizer := &stubOptimizer{shouldOptimize: true, err: fmt.Errorf("編碼器退出碼 1")}
	f := newPipelineFixture(t, defaultModel(), defaultProber(), optimizer, &stubExtractor{})

	state, err := f.svc.RunDocument(context.Background(), "demo", "/videos/demo.mp4", "zh-TW", models.FormatManual)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, state.Status)
	assert.Equal(t, "/videos/demo.mp4", state.SourcePath)

	meta, err := f.meta.Load("demo", "/videos/demo.mp4")
	require.NoError(t, err)
	assert.Nil(t, meta.Optimized)
}

package models

import (
	"fmt"
	"time"
)

// DocumentFormat 定義輸出文件的格式模板
type DocumentFormat string

const (
	FormatManual         DocumentFormat = "manual"          // 程序性操作手冊（有序 step 區塊）
	FormatQuickGuide     DocumentFormat = "quick_guide"     // 精簡快速指南（有序 step 區塊）
	FormatIncidentReport DocumentFormat = "incident_report" // 事件報告（主題 section 區塊）
	FormatProgressReport DocumentFormat = "progress_report" // 進度報告（主題 section 區塊）
)

// IsProcedural 回報此格式是否使用有序的 step 區塊（否則使用主題 section 區塊）
func (f DocumentFormat) IsProcedural() bool {
	return f == FormatManual || f == FormatQuickGuide
}

// AnalysisFocus 回傳注入影片分析 Prompt 的觀察重點提示
func (f DocumentFormat) AnalysisFocus() string {
	switch f {
	case FormatIncidentReport:
		return "evidentiary"
	case FormatProgressReport:
		return "progress-tracking"
	default:
		return "instructional"
	}
}

// VideoAsset 是來源影片的不可變描述，由 VideoProbe 在流程開始時計算一次
type VideoAsset struct {
	Path            string  `json:"path"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	FrameRate       float64 `json:"frame_rate"`
}

// OptimizationRecord 記錄影片壓縮結果；performed 為 true 時 optimized_size <= original_size
type OptimizationRecord struct {
	Performed        bool    `json:"performed"`
	OriginalSize     int64   `json:"original_size"`
	OptimizedSize    int64   `json:"optimized_size"`
	CompressionRatio float64 `json:"compression_ratio"`
	OutputPath       string  `json:"output_path"`
}

// Keyframe 是從分析文字中解析出的時間點與描述
type Keyframe struct {
	TimestampSeconds   float64 `json:"timestamp_seconds"`
	TimestampFormatted string  `json:"timestamp_formatted"` // M:SS
	Description        string  `json:"description"`
}

// FormatTimestamp 將秒數格式化為 M:SS
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// DetectedLanguages 是影片分析回應中的語言偵測區塊
type DetectedLanguages struct {
	Audio      *string `json:"audio"` // 無人聲時為 null
	UIText     string  `json:"ui_text"`
	Confidence string  `json:"confidence"` // high / medium / low
}

// AnalysisRecord 是影片理解模型的一次性分析結果，建立後不再變動
type AnalysisRecord struct {
	RawText           string            `json:"raw_text"`
	ModelUsed         string            `json:"model_used"`
	DetectedLanguages DetectedLanguages `json:"detected_languages"`
}

// Screenshot 對應一個保留下來的 Keyframe 所擷取的靜態圖片
type Screenshot struct {
	FigureNumber     int     `json:"figure_number"`
	FilePath         string  `json:"file_path"`
	RelativePath     string  `json:"relative_path"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	Description      string  `json:"description"`
}

// DocumentMetadata 是每個文件持久化的快取聚合，對應 {document}/metadata.json
// 它是「此昂貴步驟是否已執行」的唯一真相來源，載入、就地修改、完整重寫。
type DocumentMetadata struct {
	VideoPath          string              `json:"video_path"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	VideoMetadata      *VideoAsset         `json:"video_metadata,omitempty"`
	VideoAnalysis      *AnalysisRecord     `json:"video_analysis,omitempty"`
	Keyframes          []Keyframe          `json:"keyframes,omitempty"`
	Optimized          *OptimizationRecord `json:"optimized,omitempty"`
	LanguagesGenerated []string            `json:"languages_generated"`
}

// HasLanguage 回報指定語言是否已產生過
func (m *DocumentMetadata) HasLanguage(lang string) bool {
	for _, l := range m.LanguagesGenerated {
		if l == lang {
			return true
		}
	}
	return false
}

// AddLanguage 以冪等方式將語言加入已產生清單，重複加入不產生變化
func (m *DocumentMetadata) AddLanguage(lang string) {
	if m.HasLanguage(lang) {
		return
	}
	m.LanguagesGenerated = append(m.LanguagesGenerated, lang)
}

package gemini

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"VideoDocGen/internal/config"
	"VideoDocGen/internal/models"
)

// Client 結構用於與 Gemini API 互動：影片理解模型與文件產生模型各一
type Client struct {
	sdk                 *genai.Client
	analysisModel       *genai.GenerativeModel
	generationModel     *genai.GenerativeModel
	analysisModelName   string
	generationModelName string
	uploadCfg           config.UploadConfig
}

// NewClient 建立一個 Gemini 客戶端實例
func NewClient(cfg config.GeminiClientConfig, uploadCfg config.UploadConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API Key 不得為空")
	}
	analysisModelName := cfg.AnalysisModel
	if analysisModelName == "" {
		analysisModelName = "gemini-1.5-pro-latest"
		log.Printf("警告：[Gemini Client] 未提供影片分析模型名稱，使用預設值: %s\n", analysisModelName)
	}
	generationModelName := cfg.GenerationModel
	if generationModelName == "" {
		generationModelName = "gemini-1.5-flash-latest"
		log.Printf("警告：[Gemini Client] 未提供文件產生模型名稱，使用預設值: %s\n", generationModelName)
	}

	ctx := context.Background()
	genaiSDKClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("無法建立 Gemini GenAI SDK 客戶端: %w", err)
	}

	log.Printf("資訊：[Gemini Client] 影片分析模型 '%s'、文件產生模型 '%s' 初始化成功。\n", analysisModelName, generationModelName)
	return &Client{
		sdk:                 genaiSDKClient,
		analysisModel:       genaiSDKClient.GenerativeModel(analysisModelName),
		generationModel:     genaiSDKClient.GenerativeModel(generationModelName),
		analysisModelName:   analysisModelName,
		generationModelName: generationModelName,
		uploadCfg:           uploadCfg,
	}, nil
}

// AnalysisModelName 回傳影片分析模型的名稱（記錄於 AnalysisRecord.model_used）
func (c *Client) AnalysisModelName() string {
	return c.analysisModelName
}

// Close 關閉底層 SDK 連線
func (c *Client) Close() error {
	return c.sdk.Close()
}

// videoMIMEType 依副檔名推斷影片的 MIME 類型
func videoMIMEType(videoPath string) string {
	ext := strings.ToLower(filepath.Ext(videoPath))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mpeg", ".mpg":
		return "video/mpeg"
	case ".avi":
		return "video/x-msvideo"
	case ".wmv":
		return "video/x-ms-wmv"
	case ".flv":
		return "video/x-flv"
	case ".webm":
		return "video/webm"
	default:
		log.Printf("警告：[Gemini Client] 未知的影片副檔名 '%s'，以 video/mp4 處理。\n", ext)
		return "video/mp4"
	}
}

// useUploadPath 決策規則：檔案大小達到內嵌門檻時改走非同步上傳路徑
func (c *Client) useUploadPath(sizeBytes int64) bool {
	return sizeBytes >= int64(c.uploadCfg.InlineThresholdMB)*1024*1024
}

// buildVideoPart 依影片大小選擇內嵌或上傳：小檔直接把位元組內嵌到請求，
// 大檔提交到檔案服務並輪詢直到可供推論，回傳可用的引用。
func (c *Client) buildVideoPart(ctx context.Context, videoPath string) (genai.Part, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, &models.InputError{Path: videoPath, Err: err}
	}
	mimeType := videoMIMEType(videoPath)

	if c.useUploadPath(info.Size()) {
		log.Printf("資訊：[Gemini Client] 影片 '%s' 大小 %.2f MB 達到內嵌門檻，改走上傳路徑。\n", videoPath, float64(info.Size())/1024/1024)
		uploaded, err := c.uploadAndAwait(ctx, videoPath, mimeType)
		if err != nil {
			return nil, err
		}
		return genai.FileData{MIMEType: uploaded.MIMEType, URI: uploaded.URI}, nil
	}

	log.Printf("資訊：[Gemini Client] 影片 '%s' 大小 %.2f MB，直接內嵌到請求。\n", videoPath, float64(info.Size())/1024/1024)
	videoData, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, &models.InputError{Path: videoPath, Err: err}
	}
	return genai.Blob{MIMEType: mimeType, Data: videoData}, nil
}

// uploadAndAwait 上傳影片到檔案服務並以固定間隔輪詢處理狀態，
// 直到 ready、failed 或超出輪詢預算（三者皆為終止狀態，超時視為傳輸失敗）。
// 永不回傳尚未就緒的引用。
func (c *Client) uploadAndAwait(ctx context.Context, videoPath string, mimeType string) (*genai.File, error) {
	uploaded, err := c.sdk.UploadFileFromPath(ctx, videoPath, &genai.UploadFileOptions{MIMEType: mimeType})
	if err != nil {
		return nil, &models.TransportError{Operation: "上傳影片", Err: err}
	}
	log.Printf("資訊：[Gemini Client] 影片已上傳為 '%s'，開始輪詢處理狀態...\n", uploaded.Name)

	pollInterval := time.Duration(c.uploadCfg.PollIntervalSecs) * time.Second
	deadline := time.Now().Add(time.Duration(c.uploadCfg.MaxWaitSecs) * time.Second)

	for uploaded.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, &models.TransportError{
				Operation: "等待上傳檔案就緒",
				Err:       fmt.Errorf("超過輪詢預算 %d 秒，檔案 '%s' 仍在處理中", c.uploadCfg.MaxWaitSecs, uploaded.Name),
			}
		}
		select {
		case <-ctx.Done():
			return nil, &models.TransportError{Operation: "等待上傳檔案就緒", Err: ctx.Err()}
		case <-time.After(pollInterval):
		}
		uploaded, err = c.sdk.GetFile(ctx, uploaded.Name)
		if err != nil {
			return nil, &models.TransportError{Operation: "查詢上傳檔案狀態", Err: err}
		}
	}

	if uploaded.State != genai.FileStateActive {
		return nil, &models.TransportError{
			Operation: "等待上傳檔案就緒",
			Err:       fmt.Errorf("檔案 '%s' 處理失敗 (狀態: %v)", uploaded.Name, uploaded.State),
		}
	}
	log.Printf("資訊：[Gemini Client] 上傳檔案 '%s' 已就緒。\n", uploaded.Name)
	return uploaded, nil
}

// responseText 檢查回應有效性並將所有文字部分依序串接為單一字串
func responseText(resp *genai.GenerateContentResponse, operation string) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("Gemini API %s 回應無效或為空 (nil response or no candidates)", operation)
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
			if candidate.SafetyRatings != nil {
				for _, rating := range candidate.SafetyRatings {
					log.Printf("警告：[Gemini Client] 安全評級 (%s) - Category: %s, Probability: %s\n", operation, rating.Category, rating.Probability)
				}
			}
			return "", fmt.Errorf("Gemini API %s 回應內容被阻止，原因: %s", operation, candidate.FinishReason.String())
		}
		return "", fmt.Errorf("Gemini API %s 回應無效或為空 (no content parts, FinishReason: %s)", operation, candidate.FinishReason.String())
	}
	var responseTextBuilder strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseTextBuilder.WriteString(string(txt))
		} else {
			log.Printf("警告：[Gemini Client] %s - 收到非預期的 Part 類型: %T\n", operation, part)
		}
	}
	text := responseTextBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("Gemini API %s 回傳的內容為空", operation)
	}
	return text, nil
}

// AnalyzeVideo 向影片理解模型發送一次請求，回傳完整的自由文字分析
// （含結構分析、Keyframe 清單與語言偵測區塊）。傳輸或模型錯誤回傳 TransportError。
func (c *Client) AnalyzeVideo(ctx context.Context, videoPath string, prompt string) (string, error) {
	log.Printf("資訊：[Gemini Client] AnalyzeVideo - 開始分析影片: %s\n", videoPath)
	log.Printf("資訊：[Gemini Client] AnalyzeVideo - 使用 Prompt (前100字元): %s...\n", firstNChars(prompt, 100))

	videoPart, err := c.buildVideoPart(ctx, videoPath)
	if err != nil {
		return "", err
	}

	requestParts := []genai.Part{genai.Text(prompt), videoPart}
	log.Println("資訊：[Gemini Client] AnalyzeVideo - 正在向 Gemini API 發送請求...")
	resp, err := c.analysisModel.GenerateContent(ctx, requestParts...)
	if err != nil {
		return "", &models.TransportError{Operation: "影片分析", Err: err}
	}

	text, err := responseText(resp, "影片分析")
	if err != nil {
		return "", &models.TransportError{Operation: "影片分析", Err: err}
	}
	log.Printf("資訊：[Gemini Client] AnalyzeVideo - 收到分析回應 (長度: %d 字元)。\n", len(text))
	return text, nil
}

// GenerateDocument 向文件產生模型發送組合好的 Prompt，回傳正規化後的單一字串
// （多部分回應依序串接）。傳輸或模型錯誤回傳 TransportError。
func (c *Client) GenerateDocument(ctx context.Context, prompt string) (string, error) {
	log.Printf("資訊：[Gemini Client] GenerateDocument - 使用 Prompt (前100字元): %s...\n", firstNChars(prompt, 100))
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("文件產生的 Prompt 不得為空")
	}

	log.Println("資訊：[Gemini Client] GenerateDocument - 正在向 Gemini API 發送請求...")
	resp, err := c.generationModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &models.TransportError{Operation: "文件產生", Err: err}
	}

	text, err := responseText(resp, "文件產生")
	if err != nil {
		return "", &models.TransportError{Operation: "文件產生", Err: err}
	}
	log.Printf("資訊：[Gemini Client] GenerateDocument - 收到產生回應 (長度: %d 字元)。\n", len(text))
	return text, nil
}

// firstNChars 輔助函式，僅用於日誌記錄
func firstNChars(s string, n int) string {
	if len(s) > n {
		runes := []rune(s)
		if len(runes) > n {
			return string(runes[:n])
		}
	}
	return s
}

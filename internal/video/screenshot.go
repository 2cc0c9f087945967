package video

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"

	"VideoDocGen/internal/models"
)

// ScreenshotExtractor 負責在指定時間點擷取單一影格為無損靜態圖片
type ScreenshotExtractor struct {
	maxWidth  int
	ffmpegCmd string
}

// NewScreenshotExtractor 建立 ScreenshotExtractor 實例
func NewScreenshotExtractor(maxWidth int) *ScreenshotExtractor {
	return &ScreenshotExtractor{maxWidth: maxWidth, ffmpegCmd: "ffmpeg"}
}

// FileName 回傳決定性的截圖檔名：figure_{index:02d}_t{floor(timestamp)}s.png。
// 此命名同時作為既有截圖的存在性檢查，讓重跑時可跳過重新擷取。
func (e *ScreenshotExtractor) FileName(figureNumber int, timestampSeconds float64) string {
	return fmt.Sprintf("figure_%02d_t%ds.png", figureNumber, int(math.Floor(timestampSeconds)))
}

// Extract 在 timestampSeconds 處尋找最近的影格並寫入 outputPath（PNG 無損編碼），
// 寬度超過上限時等比例縮小（永不放大）。無法取得影格時回傳 FrameReadError，
// 呼叫端將該圖略過並記錄，不影響文件其餘部分。
func (e *ScreenshotExtractor) Extract(ctx context.Context, videoPath string, timestampSeconds float64, outputPath string) error {
	if existing, err := os.Stat(outputPath); err == nil && existing.Size() > 0 {
		log.Printf("資訊：[ScreenshotExtractor] 截圖 '%s' 已存在，跳過擷取。\n", outputPath)
		return nil
	}

	args := []string{
		"-y",
		"-ss", fmt.Sprintf("%.3f", timestampSeconds),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", e.maxWidth),
		outputPath,
	}
	cmd := exec.CommandContext(ctx, e.ffmpegCmd, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		return &models.FrameReadError{
			Timestamp: timestampSeconds,
			Err:       fmt.Errorf("ffmpeg 擷取影格失敗: %w (輸出: %s)", err, lastNChars(string(output), 400)),
		}
	}

	// 時間點超出最後一個可解碼影格時 ffmpeg 可能成功退出但不產生輸出
	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return &models.FrameReadError{
			Timestamp: timestampSeconds,
			Err:       fmt.Errorf("時間點處沒有可解碼的影格"),
		}
	}
	return nil
}

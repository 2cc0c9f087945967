package video

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"

	"VideoDocGen/internal/config"
	"VideoDocGen/internal/models"
)

// Optimizer 負責在影片超過大小或長度門檻時重新編碼以降低上傳成本。
// 壓縮是盡力而為的成本最佳化，失敗時呼叫端退回原始影片，永不致命。
type Optimizer struct {
	cfg       config.OptimizeConfig
	ffmpegCmd string
}

// NewOptimizer 建立 Optimizer 實例
func NewOptimizer(cfg config.OptimizeConfig) *Optimizer {
	return &Optimizer{cfg: cfg, ffmpegCmd: "ffmpeg"}
}

// ShouldOptimize 決策規則：大小超過門檻「或」長度超過門檻時才壓縮
func (o *Optimizer) ShouldOptimize(asset *models.VideoAsset) bool {
	sizeThreshold := int64(o.cfg.SizeThresholdMB) * 1024 * 1024
	return asset.SizeBytes > sizeThreshold ||
		asset.DurationSeconds > float64(o.cfg.DurationThresholdSecs)
}

// TargetResolution 計算目標解析度：來源已在目標範圍內時維持原尺寸（永不放大），
// 否則等比例縮小，且兩個維度都向下取偶數（常見編碼器的要求）。
func (o *Optimizer) TargetResolution(width, height int) (int, int) {
	if width <= o.cfg.TargetWidth && height <= o.cfg.TargetHeight {
		return evenDown(width), evenDown(height)
	}
	scaleW := float64(o.cfg.TargetWidth) / float64(width)
	scaleH := float64(o.cfg.TargetHeight) / float64(height)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	return evenDown(int(float64(width) * scale)), evenDown(int(float64(height) * scale))
}

func evenDown(n int) int {
	return n - n%2
}

// Optimize 以外部 ffmpeg 重新編碼影片到 outputPath，回傳壓縮記錄。
// 若 outputPath 已存在非空檔案則直接重用（以文件為鍵的冪等記憶化，而非內容雜湊）。
// 編碼器不可用、非零退出碼或輸出比原始檔更大時回傳錯誤，由呼叫端降級處理。
func (o *Optimizer) Optimize(ctx context.Context, asset *models.VideoAsset, outputPath string) (*models.OptimizationRecord, error) {
	if existing, err := os.Stat(outputPath); err == nil && existing.Size() > 0 {
		log.Printf("資訊：[VideoOptimizer] 發現既有的壓縮產物 '%s'，跳過重新編碼。\n", outputPath)
		return buildRecord(asset.SizeBytes, existing.Size(), outputPath), nil
	}

	if _, err := exec.LookPath(o.ffmpegCmd); err != nil {
		return nil, fmt.Errorf("找不到 ffmpeg 編碼器: %w", err)
	}

	targetW, targetH := o.TargetResolution(asset.Width, asset.Height)
	args := []string{
		"-y",
		"-i", asset.Path,
		"-vf", fmt.Sprintf("scale=%d:%d", targetW, targetH),
		"-r", strconv.Itoa(o.cfg.TargetFPS),
		"-c:v", "libx264",
		"-crf", strconv.Itoa(o.cfg.CRF),
		"-preset", "fast",
		"-c:a", "aac",
		"-b:a", "96k",
		outputPath,
	}
	log.Printf("資訊：[VideoOptimizer] 開始壓縮影片 '%s' -> '%s' (%dx%d @ %dfps)\n", asset.Path, outputPath, targetW, targetH, o.cfg.TargetFPS)

	cmd := exec.CommandContext(ctx, o.ffmpegCmd, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("ffmpeg 重新編碼失敗: %w (輸出: %s)", err, lastNChars(string(output), 400))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("壓縮完成但輸出檔案不可讀: %w", err)
	}
	if info.Size() >= asset.SizeBytes {
		// 重新編碼反而變大時捨棄產物，退回原始影片
		os.Remove(outputPath)
		return nil, fmt.Errorf("壓縮後檔案 (%d bytes) 未小於原始檔 (%d bytes)", info.Size(), asset.SizeBytes)
	}

	record := buildRecord(asset.SizeBytes, info.Size(), outputPath)
	log.Printf("資訊：[VideoOptimizer] 壓縮完成：%d -> %d bytes (壓縮率 %.2f)\n", record.OriginalSize, record.OptimizedSize, record.CompressionRatio)
	return record, nil
}

func buildRecord(originalSize, optimizedSize int64, outputPath string) *models.OptimizationRecord {
	ratio := 0.0
	if originalSize > 0 {
		ratio = float64(optimizedSize) / float64(originalSize)
	}
	return &models.OptimizationRecord{
		Performed:        true,
		OriginalSize:     originalSize,
		OptimizedSize:    optimizedSize,
		CompressionRatio: ratio,
		OutputPath:       outputPath,
	}
}

func lastNChars(s string, n int) string {
	if len(s) > n {
		return s[len(s)-n:]
	}
	return s
}

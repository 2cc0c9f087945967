package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"VideoDocGen/internal/models"
)

// ErrUnreadableMedia 表示容器無法開啟或不含可用的影像串流
var ErrUnreadableMedia = errors.New("無法讀取的媒體容器")

// probeOutput 對應 ffprobe -print_format json 的輸出
type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// Prober 負責讀取影片容器層級的元數據（唯讀，無副作用）
type Prober struct {
	ffprobeCmd string
}

// NewProber 建立 Prober 實例
func NewProber() *Prober {
	return &Prober{ffprobeCmd: "ffprobe"}
}

// Probe 回傳影片的 VideoAsset。路徑不存在回傳 InputError；
// 容器無法開啟回傳包裝了 ErrUnreadableMedia 的 InputError；
// 影格率為零時長度回報為 0 而非失敗（部分損壞的容器仍可取得影格）。
func (p *Prober) Probe(ctx context.Context, videoPath string) (*models.VideoAsset, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, &models.InputError{Path: videoPath, Err: err}
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		videoPath,
	}
	cmd := exec.CommandContext(ctx, p.ffprobeCmd, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, &models.InputError{Path: videoPath, Err: fmt.Errorf("%w: ffprobe 執行失敗: %v", ErrUnreadableMedia, err)}
	}

	asset, err := parseProbeOutput(videoPath, output)
	if err != nil {
		return nil, &models.InputError{Path: videoPath, Err: err}
	}
	asset.SizeBytes = info.Size()
	return asset, nil
}

// parseProbeOutput 將 ffprobe 的 JSON 輸出轉為 VideoAsset
func parseProbeOutput(videoPath string, raw []byte) (*models.VideoAsset, error) {
	var probed probeOutput
	if err := json.Unmarshal(raw, &probed); err != nil {
		return nil, fmt.Errorf("%w: 無法解析 ffprobe 輸出: %v", ErrUnreadableMedia, err)
	}

	asset := &models.VideoAsset{Path: videoPath}
	found := false
	for _, stream := range probed.Streams {
		if stream.CodecType != "video" {
			continue
		}
		asset.Width = stream.Width
		asset.Height = stream.Height
		asset.FrameRate = parseFrameRate(stream.AvgFrameRate)
		if asset.FrameRate == 0 {
			asset.FrameRate = parseFrameRate(stream.RFrameRate)
		}
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("%w: 容器中沒有影像串流", ErrUnreadableMedia)
	}

	if probed.Format.Duration != "" {
		if duration, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
			asset.DurationSeconds = duration
		}
	}
	if asset.FrameRate == 0 {
		log.Printf("警告：[VideoProbe] 影片 '%s' 的影格率為零，長度回報為 0。\n", videoPath)
		asset.DurationSeconds = 0
	}
	return asset, nil
}

// parseFrameRate 解析 ffprobe 的 "30000/1001" 形式影格率
func parseFrameRate(rate string) float64 {
	if rate == "" || rate == "0/0" {
		return 0
	}
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) == 1 {
		value, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return 0
		}
		return value
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

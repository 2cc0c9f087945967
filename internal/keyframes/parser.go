package keyframes

import (
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"VideoDocGen/internal/models"
)

// timestampLinePattern 僅接受 "Timestamp: M:SS" 或 "Timestamp: MM:SS"，
// 不接受其他標點或附加文字（例如 "Timestamp: 5 seconds (00:05)" 不符合文法）。
var timestampLinePattern = regexp.MustCompile(`^Timestamp:\s*(\d{1,2}):(\d{2})\s*$`)

// parserState 是逐行掃描的狀態機狀態
type parserState int

const (
	stateIdle parserState = iota
	stateInKeyframe
)

// Parser 負責將分析文字中的 Keyframe 區塊轉為結構化記錄，
// 套用驗證過濾，並以貪婪方式強制最小時間間隔。
type Parser struct {
	minInterval float64
}

// NewParser 建立 Parser 實例
func NewParser(minIntervalSeconds float64) *Parser {
	return &Parser{minInterval: minIntervalSeconds}
}

// Parse 逐行掃描分析文字，回傳解析出的 Keyframe 序列。
// 解析是防禦性的：不符合文法的行被靜默跳過，永不回傳錯誤。
func Parse(analysisText string) []models.Keyframe {
	var result []models.Keyframe

	state := stateIdle
	var current *models.Keyframe
	var descLines []string

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.Join(descLines, " ")
		result = append(result, *current)
		current = nil
		descLines = nil
	}

	for _, rawLine := range strings.Split(analysisText, "\n") {
		line := strings.TrimSpace(rawLine)

		if strings.HasPrefix(line, "Timestamp:") {
			// 任何 "Timestamp:" 標籤都會關閉當前記錄；只有符合文法的才開啟新記錄
			flush()
			m := timestampLinePattern.FindStringSubmatch(line)
			if m == nil {
				state = stateIdle
				continue
			}
			minutes, _ := strconv.Atoi(m[1])
			seconds, _ := strconv.Atoi(m[2])
			ts := float64(minutes*60 + seconds)
			current = &models.Keyframe{
				TimestampSeconds:   ts,
				TimestampFormatted: models.FormatTimestamp(ts),
			}
			state = stateInKeyframe
			continue
		}

		if state != stateInKeyframe {
			continue
		}

		// "**" 或 "---" 開頭的行結束當前描述區塊
		if strings.HasPrefix(line, "**") || strings.HasPrefix(line, "---") {
			flush()
			state = stateIdle
			continue
		}
		if line == "" {
			continue
		}
		// 可選的 "Description:" 標籤行，剝除標籤後保留內容
		if strings.HasPrefix(line, "Description:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
			if line == "" {
				continue
			}
		}
		descLines = append(descLines, line)
	}
	flush()

	return result
}

// Validate 逐筆過濾無效的 Keyframe：負的時間點、超出影片長度（記錄警告）、
// 修剪後為空的描述。驗證只過濾，永不回傳錯誤。
func (p *Parser) Validate(frames []models.Keyframe, videoDurationSeconds float64) []models.Keyframe {
	var kept []models.Keyframe
	for _, kf := range frames {
		if kf.TimestampSeconds < 0 {
			continue
		}
		if videoDurationSeconds > 0 && kf.TimestampSeconds > videoDurationSeconds {
			log.Printf("警告：[KeyframeParser] 時間點 %s 超出影片長度 (%.1f 秒)，捨棄該 Keyframe。\n", kf.TimestampFormatted, videoDurationSeconds)
			continue
		}
		if strings.TrimSpace(kf.Description) == "" {
			continue
		}
		kept = append(kept, kf)
	}
	return kept
}

// Space 依時間點遞增排序後，貪婪地由左至右保留 Keyframe：
// 保留第一筆，之後每筆必須比「上一筆被保留者」晚至少 minInterval 秒。
// 這不是最大獨立集，而是刻意採用可重現的貪婪決勝規則。
func (p *Parser) Space(frames []models.Keyframe) []models.Keyframe {
	if len(frames) == 0 {
		return frames
	}
	sorted := make([]models.Keyframe, len(frames))
	copy(sorted, frames)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampSeconds < sorted[j].TimestampSeconds
	})

	kept := []models.Keyframe{sorted[0]}
	lastKept := sorted[0].TimestampSeconds
	for _, kf := range sorted[1:] {
		if kf.TimestampSeconds-lastKept >= p.minInterval {
			kept = append(kept, kf)
			lastKept = kf.TimestampSeconds
		}
	}
	return kept
}

// Extract 是解析、驗證、間隔過濾的完整流程，並對結果數量做告知性檢查：
// 零筆、少於 3 筆、多於 50 筆各記錄一種警告，但不會讓流程失敗。
func (p *Parser) Extract(analysisText string, videoDurationSeconds float64) []models.Keyframe {
	parsed := Parse(analysisText)
	validated := p.Validate(parsed, videoDurationSeconds)
	spaced := p.Space(validated)

	switch {
	case len(spaced) == 0:
		log.Println("警告：[KeyframeParser] 分析文字中找不到任何 Keyframe。")
	case len(spaced) < 3:
		log.Printf("警告：[KeyframeParser] Keyframe 數量過少 (%d 筆)，文件的圖片可能不足。\n", len(spaced))
	case len(spaced) > 50:
		log.Printf("警告：[KeyframeParser] Keyframe 數量過多 (%d 筆)，文件可能過長。\n", len(spaced))
	}

	return spaced
}

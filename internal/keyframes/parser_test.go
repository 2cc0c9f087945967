package keyframes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VideoDocGen/internal/models"
)

func TestParseBasicKeyframes(t *testing.T) {
	text := `這部影片展示了管理後台的登入流程。

## Keyframes

Timestamp: 0:05
Description: 登入頁面顯示帳號與密碼欄位

Timestamp: 1:30
Description: 使用者點擊登入按鈕後進入儀表板

## Language Detection

Audio Language: zh-TW
`
	frames := Parse(text)
	require.Len(t, frames, 2)

	assert.Equal(t, 5.0, frames[0].TimestampSeconds)
	assert.Equal(t, "0:05", frames[0].TimestampFormatted)
	assert.Equal(t, "登入頁面顯示帳號與密碼欄位", frames[0].Description)

	assert.Equal(t, 90.0, frames[1].TimestampSeconds)
	assert.Equal(t, "1:30", frames[1].TimestampFormatted)
}

func TestParseRejectsNonConformingTimestampLines(t *testing.T) {
	text := `Timestamp: 5 seconds (00:05)
Description: 不符合文法的時間點

Timestamp: 0:10
Description: 符合文法的時間點
`
	frames := Parse(text)
	require.Len(t, frames, 1)
	assert.Equal(t, 10.0, frames[0].TimestampSeconds)
}

func TestParseTimestampLabelClosesCurrentRecord(t *testing.T) {
	// 不符合文法的 Timestamp 行仍會關閉前一筆記錄，其後的描述行被丟棄
	text := `Timestamp: 0:05
Description: 第一筆
Timestamp: invalid
這行不屬於任何 Keyframe
Timestamp: 0:20
Description: 第二筆
`
	frames := Parse(text)
	require.Len(t, frames, 2)
	assert.Equal(t, "第一筆", frames[0].Description)
	assert.Equal(t, "第二筆", frames[1].Description)
}

func TestParseTerminatorLines(t *testing.T) {
	text := `Timestamp: 0:05
Description: 描述第一行
描述第二行
**粗體標題結束了這個區塊**
這行已不在 Keyframe 區塊內

Timestamp: 0:30
Description: 另一筆
---
這行也被忽略
`
	frames := Parse(text)
	require.Len(t, frames, 2)
	assert.Equal(t, "描述第一行 描述第二行", frames[0].Description)
	assert.Equal(t, "另一筆", frames[1].Description)
}

func TestParseMultiLineDescriptionJoinedBySpaces(t *testing.T) {
	text := `Timestamp: 2:15
Description: 設定頁面開啟
使用者切換到進階分頁
並儲存變更
`
	frames := Parse(text)
	require.Len(t, frames, 1)
	assert.Equal(t, "設定頁面開啟 使用者切換到進階分頁 並儲存變更", frames[0].Description)
}

func TestParseEmptyInput(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("這段文字完全沒有 Keyframe 區塊。"))
}

func TestValidateFilters(t *testing.T) {
	p := NewParser(5)
	frames := []models.Keyframe{
		{TimestampSeconds: -1, TimestampFormatted: "-0:01", Description: "負的時間點"},
		{TimestampSeconds: 10, TimestampFormatted: "0:10", Description: "有效"},
		{TimestampSeconds: 500, TimestampFormatted: "8:20", Description: "超出影片長度"},
		{TimestampSeconds: 20, TimestampFormatted: "0:20", Description: "   "},
	}
	kept := p.Validate(frames, 120)
	require.Len(t, kept, 1)
	assert.Equal(t, 10.0, kept[0].TimestampSeconds)
}

func TestValidateZeroDurationSkipsUpperBound(t *testing.T) {
	// 影片長度未知（0）時不套用上限檢查
	p := NewParser(5)
	frames := []models.Keyframe{
		{TimestampSeconds: 9999, TimestampFormatted: "166:39", Description: "長度未知時保留"},
	}
	kept := p.Validate(frames, 0)
	assert.Len(t, kept, 1)
}

func TestSpaceGreedyLeftToRight(t *testing.T) {
	p := NewParser(5)
	frames := []models.Keyframe{
		{TimestampSeconds: 0, Description: "a"},
		{TimestampSeconds: 3, Description: "b"},
		{TimestampSeconds: 5, Description: "c"},
		{TimestampSeconds: 7, Description: "d"},
		{TimestampSeconds: 12, Description: "e"},
	}
	kept := p.Space(frames)
	// 貪婪規則：保留 0，跳過 3（差 3 < 5），保留 5，跳過 7，保留 12
	require.Len(t, kept, 3)
	assert.Equal(t, 0.0, kept[0].TimestampSeconds)
	assert.Equal(t, 5.0, kept[1].TimestampSeconds)
	assert.Equal(t, 12.0, kept[2].TimestampSeconds)
}

func TestSpaceSortsBeforeFiltering(t *testing.T) {
	p := NewParser(5)
	frames := []models.Keyframe{
		{TimestampSeconds: 30, Description: "後"},
		{TimestampSeconds: 0, Description: "前"},
		{TimestampSeconds: 2, Description: "太近"},
	}
	kept := p.Space(frames)
	require.Len(t, kept, 2)
	assert.Equal(t, 0.0, kept[0].TimestampSeconds)
	assert.Equal(t, 30.0, kept[1].TimestampSeconds)
}

func TestExtractFullPipeline(t *testing.T) {
	p := NewParser(5)
	text := `## Keyframes

Timestamp: 0:00
Description: 開場畫面

Timestamp: 0:02
Description: 太接近開場，應被間隔規則略過

Timestamp: 0:10
Description: 功能選單

Timestamp: 0:30
Description:
`
	frames := p.Extract(text, 60)
	require.Len(t, frames, 2)
	assert.Equal(t, "開場畫面", frames[0].Description)
	assert.Equal(t, "功能選單", frames[1].Description)
}

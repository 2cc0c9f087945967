package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VideoDocGen/internal/config"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(config.GeminiClientConfig{}, config.UploadConfig{})
	assert.Error(t, err)
}

func TestVideoMIMEType(t *testing.T) {
	assert.Equal(t, "video/mp4", videoMIMEType("/videos/demo.mp4"))
	assert.Equal(t, "video/mp4", videoMIMEType("/videos/DEMO.MP4"))
	assert.Equal(t, "video/quicktime", videoMIMEType("/videos/clip.mov"))
	assert.Equal(t, "video/webm", videoMIMEType("/videos/clip.webm"))
	assert.Equal(t, "video/x-msvideo", videoMIMEType("/videos/old.avi"))
	// 未知副檔名退回 video/mp4
	assert.Equal(t, "video/mp4", videoMIMEType("/videos/strange.xyz"))
}

func TestUseUploadPath(t *testing.T) {
	c := &Client{uploadCfg: config.UploadConfig{InlineThresholdMB: 20}}

	assert.False(t, c.useUploadPath(19*1024*1024))
	// 門檻本身走上傳路徑（達到即上傳）
	assert.True(t, c.useUploadPath(20*1024*1024))
	assert.True(t, c.useUploadPath(100*1024*1024))
}

func TestResponseTextConcatenatesParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("第一段。"), genai.Text("第二段。")}},
		}},
	}
	text, err := responseText(resp, "測試")
	require.NoError(t, err)
	assert.Equal(t, "第一段。第二段。", text)
}

func TestResponseTextRejectsEmptyResponse(t *testing.T) {
	_, err := responseText(nil, "測試")
	assert.Error(t, err)

	_, err = responseText(&genai.GenerateContentResponse{}, "測試")
	assert.Error(t, err)

	blank := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("   ")}},
		}},
	}
	_, err = responseText(blank, "測試")
	assert.Error(t, err)
}

func TestFirstNChars(t *testing.T) {
	assert.Equal(t, "abc", firstNChars("abc", 10))
	assert.Equal(t, "abc", firstNChars("abcdef", 3))
	// 以 rune 為單位截斷，不會切斷多位元組字元
	assert.Equal(t, "中文", firstNChars("中文字串", 2))
}

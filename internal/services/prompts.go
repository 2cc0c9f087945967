package services

import (
	"fmt"
	"strings"

	"VideoDocGen/internal/models"
)

// analysisFocusHint 回傳依文件格式注入分析 Prompt 的觀察重點；
// 這只影響模型被要求注意什麼，不影響階段的控制流程。
func analysisFocusHint(format models.DocumentFormat) string {
	switch format.AnalysisFocus() {
	case "evidentiary":
		return "Focus on observable evidence: what happened, in what order, with exact on-screen states before and after each event."
	case "progress-tracking":
		return "Focus on milestones and state changes: what was accomplished at each point and how progress is visible on screen."
	default:
		return "Focus on instructional steps: what the operator does, which controls are used, and what the expected result of each action looks like."
	}
}

// buildAnalysisPrompt 組合影片分析請求：自由結構分析、固定文法的 Keyframe 清單、
// 語言偵測區塊，三個邏輯區段在同一個回應中。
func buildAnalysisPrompt(format models.DocumentFormat) string {
	var b strings.Builder
	b.WriteString("You are analyzing an instructional video in order to produce a structured document.\n")
	b.WriteString(analysisFocusHint(format))
	b.WriteString("\n\nRespond with the following three sections, in this order:\n\n")
	b.WriteString("1. A free-form structural analysis of the video content.\n\n")
	b.WriteString("2. A section titled \"## Keyframes\" listing the moments that should become illustrative screenshots. ")
	b.WriteString("Each keyframe must use exactly this format, one per entry:\n")
	b.WriteString("Timestamp: M:SS\n")
	b.WriteString("Description: one or more lines describing what is visible at that moment\n\n")
	b.WriteString("3. A section titled \"## Language Detection\" with exactly these lines:\n")
	b.WriteString("Audio Language: <ISO code of the spoken language, or none>\n")
	b.WriteString("UI Text Language: <ISO code of the on-screen interface text>\n")
	b.WriteString("Confidence: <high, medium or low>\n")
	return b.String()
}

// parseDetectedLanguages 以寬容的逐行掃描從分析回應中取出語言偵測區塊；
// 區塊缺漏時套用預設值而非失敗。
func parseDetectedLanguages(analysisText string) models.DetectedLanguages {
	detected := models.DetectedLanguages{UIText: "en", Confidence: "low"}

	for _, rawLine := range strings.Split(analysisText, "\n") {
		line := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rawLine), "*-"))
		switch {
		case strings.HasPrefix(line, "Audio Language:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "Audio Language:"))
			lowered := strings.ToLower(value)
			if value != "" && lowered != "none" && lowered != "null" && lowered != "n/a" {
				detected.Audio = &value
			}
		case strings.HasPrefix(line, "UI Text Language:"):
			value := strings.TrimSpace(strings.TrimPrefix(line, "UI Text Language:"))
			if value != "" {
				detected.UIText = value
			}
		case strings.HasPrefix(line, "Confidence:"):
			value := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, "Confidence:")))
			if value == "high" || value == "medium" || value == "low" {
				detected.Confidence = value
			}
		}
	}
	return detected
}

// buildGenerationPrompt 組合文件產生請求：分析文字、截圖引用、目標語言與格式模板
func buildGenerationPrompt(analysisText string, screenshots []models.Screenshot, language string, format models.DocumentFormat) string {
	var b strings.Builder
	b.WriteString("Write a complete document in Markdown based on the video analysis below.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Write the entire document in %s. Keep user-interface labels verbatim in their original language.\n", language)
	b.WriteString("- Embed every screenshot listed below exactly once, using the exact relative path given, as a Markdown image.\n")
	if format.IsProcedural() {
		b.WriteString("- Structure the procedure as ordered step blocks: each step starts with a heading \"### Step N\" followed by its instructions and its screenshot.\n")
	} else {
		b.WriteString("- Structure the content as topic section blocks: each topic starts with a heading \"### <topic>\" followed by its findings and related screenshots.\n")
	}
	if format == models.FormatQuickGuide {
		b.WriteString("- Keep each step short: one or two sentences.\n")
	}

	b.WriteString("\nScreenshots to embed:\n")
	for _, shot := range screenshots {
		fmt.Fprintf(&b, "- Figure %d: path %s, taken at %s. %s\n",
			shot.FigureNumber, shot.RelativePath, models.FormatTimestamp(shot.TimestampSeconds), shot.Description)
	}

	b.WriteString("\nVideo analysis:\n")
	b.WriteString(analysisText)
	return b.String()
}

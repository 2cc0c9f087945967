package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "0:00", FormatTimestamp(0))
	assert.Equal(t, "0:05", FormatTimestamp(5))
	assert.Equal(t, "1:30", FormatTimestamp(90))
	assert.Equal(t, "10:02", FormatTimestamp(602))
	// 小數秒向下取整
	assert.Equal(t, "0:59", FormatTimestamp(59.9))
}

func TestDocumentFormatIsProcedural(t *testing.T) {
	assert.True(t, FormatManual.IsProcedural())
	assert.True(t, FormatQuickGuide.IsProcedural())
	assert.False(t, FormatIncidentReport.IsProcedural())
	assert.False(t, FormatProgressReport.IsProcedural())
}

func TestDocumentFormatAnalysisFocus(t *testing.T) {
	assert.Equal(t, "instructional", FormatManual.AnalysisFocus())
	assert.Equal(t, "instructional", FormatQuickGuide.AnalysisFocus())
	assert.Equal(t, "evidentiary", FormatIncidentReport.AnalysisFocus())
	assert.Equal(t, "progress-tracking", FormatProgressReport.AnalysisFocus())
}

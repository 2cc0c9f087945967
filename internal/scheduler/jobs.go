package scheduler

import (
	"VideoDocGen/internal/services"
	"log"
)

// ScanJob 是一個排程任務，用於掃描影片庫並登記新影片
type ScanJob struct {
	scanService *services.ScanService
}

// NewScanJob 建立一個 ScanJob
func NewScanJob(ss *services.ScanService) *ScanJob {
	return &ScanJob{scanService: ss}
}

// Run 實現 cron.Job 介面 (github.com/robfig/cron/v3)
func (j *ScanJob) Run() {
	log.Println("資訊：執行排程任務 - 影片庫掃描...")
	if err := j.scanService.Run(); err != nil {
		log.Printf("錯誤：影片庫掃描排程任務執行失敗: %v", err)
	} else {
		log.Println("資訊：影片庫掃描排程任務執行完成。")
	}
}

// PipelineJob 是一個排程任務，用於執行文件產生流程
type PipelineJob struct {
	pipelineService *services.PipelineService
}

// NewPipelineJob 建立一個 PipelineJob
func NewPipelineJob(ps *services.PipelineService) *PipelineJob {
	return &PipelineJob{pipelineService: ps}
}

// Run 實現 cron.Job 介面
func (j *PipelineJob) Run() {
	log.Println("資訊：執行排程任務 - 文件產生流程...")
	if err := j.pipelineService.Run(); err != nil {
		log.Printf("錯誤：文件產生排程任務執行失敗: %v", err)
	} else {
		log.Println("資訊：文件產生排程任務執行完成。")
	}
}

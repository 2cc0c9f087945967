package scheduler

import (
	"VideoDocGen/internal/services"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler 持有排程器與註冊的任務
type Scheduler struct {
	cron        *cron.Cron
	scanJob     *ScanJob
	pipelineJob *PipelineJob
}

// NewScheduler 建立排程器並依設定的 Cron 表達式註冊任務
func NewScheduler(
	ss *services.ScanService,
	ps *services.PipelineService,
	scanCronSpec string,
	pipelineCronSpec string,
) *Scheduler {
	c := cron.New(cron.WithSeconds())

	scanJob := NewScanJob(ss)
	pipelineJob := NewPipelineJob(ps)

	if scanCronSpec != "" {
		_, err := c.AddJob(scanCronSpec, scanJob)
		if err != nil {
			log.Fatalf("錯誤：無法新增影片庫掃描任務到排程器 (spec: %s): %v", scanCronSpec, err)
		}
		log.Printf("資訊：影片庫掃描任務已註冊，排程：%s\n", scanCronSpec)
	} else {
		log.Println("警告：未提供影片庫掃描任務的 Cron 表達式，該任務將不會被排程。")
	}

	if pipelineCronSpec != "" {
		_, err := c.AddJob(pipelineCronSpec, pipelineJob)
		if err != nil {
			log.Fatalf("錯誤：無法新增文件產生任務到排程器 (spec: %s): %v", pipelineCronSpec, err)
		}
		log.Printf("資訊：文件產生任務已註冊，排程：%s\n", pipelineCronSpec)
	} else {
		log.Println("警告：未提供文件產生任務的 Cron 表達式，該任務將不會被排程。")
	}

	return &Scheduler{
		cron:        c,
		scanJob:     scanJob,
		pipelineJob: pipelineJob,
	}
}

// Start 非阻塞啟動排程器
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("資訊：排程器已非阻塞啟動 (如果任務已註冊)。")
}

// Stop 停止排程器並等待運行中的任務完成
func (s *Scheduler) Stop() {
	log.Println("資訊：正在停止排程器...")
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
		log.Println("資訊：排程器已優雅停止，所有運行中任務已完成。")
	case <-time.After(10 * time.Second):
		log.Println("警告：排程器停止超時，可能仍有任務在執行。")
	}
}

package main

import (
	"VideoDocGen/internal/clients/gemini"
	"VideoDocGen/internal/config"
	"VideoDocGen/internal/services"
	"VideoDocGen/internal/storage/docmeta"
	"VideoDocGen/internal/storage/workspace"
	"VideoDocGen/internal/video"
	"context"
	"flag"
	"log"
	"strings"
)

// docgen 是單次執行的命令列工具：對指定影片執行完整的文件產生流程，
// 不經過資料庫登記與排程器。適合手動補產生或在開發時驗證流程。
func main() {
	videoPath := flag.String("video", "", "來源影片路徑 (必填)")
	docID := flag.String("doc", "", "文件識別碼 (預設取影片檔名)")
	langs := flag.String("langs", "", "目標語言，逗號分隔 (預設取設定檔)")
	format := flag.String("format", "", "文件格式: manual, quick_guide, incident_report, progress_report (預設取設定檔)")
	configPath := flag.String("config", "./configs", "設定檔目錄")
	flag.Parse()

	if *videoPath == "" {
		log.Fatal("錯誤：必須以 -video 指定來源影片路徑")
	}

	cfg, err := config.Load(*configPath, "config")
	if err != nil {
		log.Fatalf("錯誤：無法載入設定: %v", err)
	}

	id := *docID
	if id == "" {
		id = services.DocIDFromPath(*videoPath)
	}

	targetLangs := cfg.Pipeline.Languages
	if *langs != "" {
		targetLangs = nil
		for _, l := range strings.Split(*langs, ",") {
			if l = strings.TrimSpace(l); l != "" {
				targetLangs = append(targetLangs, l)
			}
		}
	}
	if len(targetLangs) == 0 {
		log.Fatal("錯誤：沒有任何目標語言可產生")
	}

	formatValue := *format
	if formatValue == "" {
		formatValue = cfg.Pipeline.DefaultFormat
	}
	docFormat := services.ParseFormat(formatValue)

	metaStore, err := docmeta.NewStore(cfg.Library.DocumentPath)
	if err != nil {
		log.Fatalf("錯誤：初始化 metadata 儲存庫失敗: %v", err)
	}
	ws, err := workspace.NewFileSystemWorkspace(cfg.Library.DocumentPath)
	if err != nil {
		log.Fatalf("錯誤：初始化文件工作區失敗: %v", err)
	}
	geminiClient, err := gemini.NewClient(cfg.GeminiClient, cfg.Pipeline.Upload)
	if err != nil {
		log.Fatalf("錯誤：初始化 Gemini 客戶端失敗: %v", err)
	}
	defer geminiClient.Close()

	pipelineSvc, err := services.NewPipelineService(
		cfg,
		metaStore,
		ws,
		geminiClient,
		nil, // 單次執行不使用資料庫登記
		video.NewProber(),
		video.NewOptimizer(cfg.Pipeline.Optimize),
		video.NewScreenshotExtractor(cfg.Pipeline.MaxScreenshotWidth),
	)
	if err != nil {
		log.Fatalf("錯誤：初始化文件產生服務失敗: %v", err)
	}

	for _, lang := range targetLangs {
		state, err := pipelineSvc.RunDocument(context.Background(), id, *videoPath, lang, docFormat)
		if err != nil {
			log.Fatalf("錯誤：語言 '%s' 的文件產生失敗: %v", lang, err)
		}
		log.Printf("資訊：語言 '%s' 的文件已產生: %s\n", lang, state.OutputPath)
	}
}

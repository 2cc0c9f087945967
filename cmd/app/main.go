package main

import (
	"VideoDocGen/internal/clients/gemini"
	"VideoDocGen/internal/config"
	"VideoDocGen/internal/scheduler"
	"VideoDocGen/internal/services"
	"VideoDocGen/internal/storage/docmeta"
	"VideoDocGen/internal/storage/mysql"
	"VideoDocGen/internal/storage/workspace"
	"VideoDocGen/internal/video"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load("./configs", "config")
	if err != nil {
		log.Fatalf("錯誤：無法載入設定: %v", err)
	}
	log.Println("資訊：應用程式設定載入成功。")

	// 資料庫遷移
	migrationPath := "file://scripts/migrate/mysql"
	dbDSNForMigrate := fmt.Sprintf("mysql://%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&multiStatements=true",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	log.Printf("資訊：準備執行資料庫遷移，來源: %s, DSN 使用資料庫: %s", migrationPath, cfg.Database.DBName)
	m, err := migrate.New(migrationPath, dbDSNForMigrate)
	if err != nil {
		log.Fatalf("錯誤：建立遷移實例失敗: %v", err)
	}
	currentVersion, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		log.Fatalf("錯誤：獲取資料庫遷移版本失敗: %v", err)
	}
	if dirty {
		log.Fatalf("錯誤：資料庫處於 dirty 狀態 (版本 %d)，遷移失敗。", currentVersion)
	}
	log.Printf("資訊：目前資料庫版本: %d。開始應用遷移...", currentVersion)
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("錯誤：執行資料庫遷移 (m.Up) 失敗: %v", err)
	} else if err == migrate.ErrNoChange {
		log.Println("資訊：資料庫結構已是最新，無需遷移。")
	} else {
		newVersion, _, _ := m.Version()
		log.Printf("資訊：資料庫遷移成功完成，版本更新至: %d。", newVersion)
	}

	metaStore, err := docmeta.NewStore(cfg.Library.DocumentPath)
	if err != nil {
		log.Fatalf("錯誤：初始化 metadata 儲存庫失敗: %v", err)
	}
	ws, err := workspace.NewFileSystemWorkspace(cfg.Library.DocumentPath)
	if err != nil {
		log.Fatalf("錯誤：初始化文件工作區失敗: %v", err)
	}

	dbStore, err := mysql.NewMySQLStore(cfg.Database)
	if err != nil {
		log.Fatalf("錯誤：初始化 MySQL 資料庫連線失敗: %v", err)
	}
	defer dbStore.Close()

	geminiClient, err := gemini.NewClient(cfg.GeminiClient, cfg.Pipeline.Upload)
	if err != nil {
		log.Fatalf("錯誤：初始化 Gemini 客戶端失敗: %v", err)
	}
	defer geminiClient.Close()

	scanSvc, err := services.NewScanService(cfg, dbStore)
	if err != nil {
		log.Fatalf("錯誤：初始化影片庫掃描服務失敗: %v", err)
	}
	pipelineSvc, err := services.NewPipelineService(
		cfg,
		metaStore,
		ws,
		geminiClient,
		dbStore,
		video.NewProber(),
		video.NewOptimizer(cfg.Pipeline.Optimize),
		video.NewScreenshotExtractor(cfg.Pipeline.MaxScreenshotWidth),
	)
	if err != nil {
		log.Fatalf("錯誤：初始化文件產生服務失敗: %v", err)
	}

	if cfg.Scheduler.Enabled {
		log.Println("資訊：排程器已在設定檔中啟用，正在初始化...")
		appScheduler := scheduler.NewScheduler(
			scanSvc,
			pipelineSvc,
			cfg.Scheduler.ScanCronSpec,
			cfg.Scheduler.PipelineCronSpec,
		)
		appScheduler.Start()
		log.Println("資訊：排程器已啟動。")
		defer appScheduler.Stop()
	} else {
		log.Println("資訊：排程器已在設定檔中禁用。")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("資訊：收到關閉訊號，正在關閉應用程式...")
	log.Println("資訊：應用程式已成功關閉。")
}

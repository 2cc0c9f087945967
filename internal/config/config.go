package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// GeminiClientConfig 結構
type GeminiClientConfig struct {
	APIKey          string `mapstructure:"apiKey"`
	AnalysisModel   string `mapstructure:"analysisModel"`
	GenerationModel string `mapstructure:"generationModel"`
}

// DatabaseConfig 結構
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
}

// LibraryConfig 定義影片來源與文件工作區的根路徑
type LibraryConfig struct {
	VideoPath    string `mapstructure:"videoPath"`    // 掃描影片的根目錄
	DocumentPath string `mapstructure:"documentPath"` // 文件工作區根目錄（{document}/metadata.json 等）
}

// OptimizeConfig 影片壓縮決策常數
type OptimizeConfig struct {
	SizeThresholdMB       int `mapstructure:"sizeThresholdMB"`
	DurationThresholdSecs int `mapstructure:"durationThresholdSecs"`
	TargetWidth           int `mapstructure:"targetWidth"`
	TargetHeight          int `mapstructure:"targetHeight"`
	TargetFPS             int `mapstructure:"targetFPS"`
	CRF                   int `mapstructure:"crf"`
}

// UploadConfig 內嵌與上傳路徑的選擇常數
type UploadConfig struct {
	InlineThresholdMB int `mapstructure:"inlineThresholdMB"`
	PollIntervalSecs  int `mapstructure:"pollIntervalSecs"`
	MaxWaitSecs       int `mapstructure:"maxWaitSecs"`
}

// PipelineConfig 結構
type PipelineConfig struct {
	Optimize               OptimizeConfig `mapstructure:"optimize"`
	Upload                 UploadConfig   `mapstructure:"upload"`
	MinKeyframeIntervalSec float64        `mapstructure:"minKeyframeIntervalSec"`
	MaxScreenshotWidth     int            `mapstructure:"maxScreenshotWidth"`
	MinDocumentChars       int            `mapstructure:"minDocumentChars"`
	AnalysisTimeoutMins    int            `mapstructure:"analysisTimeoutMins"`
	GenerationTimeoutMins  int            `mapstructure:"generationTimeoutMins"`
	Languages              []string       `mapstructure:"languages"` // 每份文件要產生的目標語言
	DefaultFormat          string         `mapstructure:"defaultFormat"`
}

// SchedulerConfig 結構
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	ScanCronSpec     string `mapstructure:"scanCronSpec"`
	PipelineCronSpec string `mapstructure:"pipelineCronSpec"`
}

// Config 結構
type Config struct {
	AppName      string             `mapstructure:"appName"`
	GeminiClient GeminiClientConfig `mapstructure:"geminiClient"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Library      LibraryConfig      `mapstructure:"library"`
	Pipeline     PipelineConfig     `mapstructure:"pipeline"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
}

// Load 函式：讀取 yaml 設定檔並套用所有流程常數的預設值
func Load(configPath string, configName string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configPath)
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 設定預設值
	v.SetDefault("appName", "VideoDocGen")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("geminiClient.analysisModel", "gemini-1.5-pro-latest")
	v.SetDefault("geminiClient.generationModel", "gemini-1.5-flash-latest")
	v.SetDefault("library.videoPath", "./data/videos")
	v.SetDefault("library.documentPath", "./data/documents")
	v.SetDefault("pipeline.optimize.sizeThresholdMB", 15)
	v.SetDefault("pipeline.optimize.durationThresholdSecs", 120)
	v.SetDefault("pipeline.optimize.targetWidth", 1280)
	v.SetDefault("pipeline.optimize.targetHeight", 720)
	v.SetDefault("pipeline.optimize.targetFPS", 15)
	v.SetDefault("pipeline.optimize.crf", 28)
	v.SetDefault("pipeline.upload.inlineThresholdMB", 20)
	v.SetDefault("pipeline.upload.pollIntervalSecs", 10)
	v.SetDefault("pipeline.upload.maxWaitSecs", 300)
	v.SetDefault("pipeline.minKeyframeIntervalSec", 5.0)
	v.SetDefault("pipeline.maxScreenshotWidth", 1280)
	v.SetDefault("pipeline.minDocumentChars", 200)
	v.SetDefault("pipeline.analysisTimeoutMins", 20)
	v.SetDefault("pipeline.generationTimeoutMins", 5)
	v.SetDefault("pipeline.languages", []string{"zh-TW"})
	v.SetDefault("pipeline.defaultFormat", "manual")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.scanCronSpec", "0 */5 * * * *")
	v.SetDefault("scheduler.pipelineCronSpec", "0 */10 * * * *")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("警告：找不到設定檔，將使用預設值和環境變數。")
		} else {
			return nil, fmt.Errorf("讀取設定檔時發生錯誤: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("無法解析設定檔到結構: %w", err)
	}

	if cfg.GeminiClient.APIKey == "" {
		fmt.Println("警告：Gemini API Key 未設定！")
	}

	fmt.Println("資訊：設定載入成功。")
	return &cfg, nil
}

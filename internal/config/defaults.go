package config

import (
	"chatwindow/internal/contextmgr"
	"chatwindow/pkg/logger"

	"github.com/spf13/viper"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	dataPath, err := DefaultDataPath()
	if err != nil {
		dataPath = "chatwindow.db"
	}

	return &Config{
		Log: logger.LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{Path: dataPath},
		Ollama: OllamaConfig{
			Endpoint:  "http://localhost:11434",
			Model:     "llama3.2",
			Timeout:   "5m",
			KeepAlive: "5m",
		},
		Context: ContextConfig{
			DefaultLimit:       contextmgr.DefaultContextLimit,
			SummarizePercent:   contextmgr.DefaultSummarizePercent,
			NearLimitPercent:   contextmgr.DefaultNearLimitPercent,
			RecentMessages:     contextmgr.MinRecentMessages,
			SummaryTemperature: 0.3,
			SummaryMaxTokens:   300,
		},
		Chat: ChatConfig{Temperature: 0.7},
	}
}

// SetDefaults registers every key of Default with viper so env overrides apply.
func SetDefaults() {
	d := Default()

	viper.SetDefault("log.level", d.Log.Level)
	viper.SetDefault("log.format", d.Log.Format)
	viper.SetDefault("log.file", d.Log.File)

	viper.SetDefault("storage.path", d.Storage.Path)

	viper.SetDefault("ollama.endpoint", d.Ollama.Endpoint)
	viper.SetDefault("ollama.model", d.Ollama.Model)
	viper.SetDefault("ollama.timeout", d.Ollama.Timeout)
	viper.SetDefault("ollama.keep_alive", d.Ollama.KeepAlive)

	viper.SetDefault("context.default_limit", d.Context.DefaultLimit)
	viper.SetDefault("context.summarize_percent", d.Context.SummarizePercent)
	viper.SetDefault("context.near_limit_percent", d.Context.NearLimitPercent)
	viper.SetDefault("context.recent_messages", d.Context.RecentMessages)
	viper.SetDefault("context.summary_temperature", d.Context.SummaryTemperature)
	viper.SetDefault("context.summary_max_tokens", d.Context.SummaryMaxTokens)
	viper.SetDefault("context.profiles_file", d.Context.ProfilesFile)

	viper.SetDefault("chat.temperature", d.Chat.Temperature)
	viper.SetDefault("chat.max_tokens", d.Chat.MaxTokens)
	viper.SetDefault("chat.system_prompt", d.Chat.SystemPrompt)

	viper.SetDefault("metrics.addr", d.Metrics.Addr)
}

package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Bot.CommandPrefix == "" {
		cfg.Bot.CommandPrefix = "/inn"
	}
	if cfg.Bot.ResultMarker == "" {
		cfg.Bot.ResultMarker = "ИНН"
	}
	if cfg.Bot.FallbackQueryText == "" {
		cfg.Bot.FallbackQueryText = "(auto) ответ без сопоставленного запроса"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./tg_results.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./data/indices/results.bleve"
	}
	if cfg.Spool.InboxDir == "" {
		cfg.Spool.InboxDir = "./spool/inbox"
	}
	if cfg.Spool.OutboxDir == "" {
		cfg.Spool.OutboxDir = "./spool/outbox"
	}
	if cfg.Spool.Extensions == nil {
		cfg.Spool.Extensions = []string{".json", ".txt", ".md"}
	}
	if cfg.Spool.DebounceMS == 0 {
		cfg.Spool.DebounceMS = 300
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.NameBoost == 0 {
		cfg.Search.NameBoost = 3.0
	}
	if cfg.Export.OutputDir == "" {
		cfg.Export.OutputDir = "."
	}
}

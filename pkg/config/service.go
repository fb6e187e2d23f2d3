package config

// PublicConfig is the subset of the config that is safe to hand to the UI.
type PublicConfig struct {
	DocumentsDir        string `json:"documents_dir"`
	APIBaseURL          string `json:"api_base_url"`
	SyncIntervalMinutes int    `json:"sync_interval_minutes"`
	SyncMaxAttempts     int    `json:"sync_max_attempts"`
}

type Service struct {
	config *Config
}

func NewService(cfg *Config) *Service {
	return &Service{config: cfg}
}

func (s *Service) RetrievePublicConfig() *PublicConfig {
	return &PublicConfig{
		DocumentsDir:        s.config.DocumentsDir,
		APIBaseURL:          s.config.APIBaseURL,
		SyncIntervalMinutes: s.config.SyncIntervalMinutes,
		SyncMaxAttempts:     s.config.SyncMaxAttempts,
	}
}

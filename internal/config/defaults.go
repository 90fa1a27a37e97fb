package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Path: "/webhook",
		},
		Line: LineConfig{
			ChannelSecret:      "${LINE_CHANNEL_SECRET}",
			ChannelAccessToken: "${LINE_CHANNEL_ACCESS_TOKEN}",
		},
		Gemini: GeminiConfig{
			APIKey:         "${GEMINI_API_KEY}",
			APIBase:        "https://generativelanguage.googleapis.com/v1beta",
			TextModel:      "gemini-2.5-flash",
			ImageModel:     "gemini-2.0-flash-exp",
			TimeoutSeconds: 120,
		},
		Limits: LimitsConfig{
			ThrottleWindowMs: 3000,
			IdleTTLMinutes:   60,
		},
		Persona: PersonaConfig{
			Path: "",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}

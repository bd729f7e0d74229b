package config

// DefaultProviders is the built-in registry used when the config file defines none.
// Streaming and batch calls share one table so both paths hit the same upstream.
// MaxTokens is left unset so each mode gets its own default bound.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{
			ID:        "gpt-4o-mini",
			Type:      "openai",
			Name:      "GPT-4o Mini",
			Icon:      "🤖",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Enabled:   true,
		},
		{
			ID:        "groq",
			Type:      "openai",
			Name:      "Groq Llama",
			Icon:      "⚡",
			BaseURL:   "https://api.groq.com/openai/v1",
			Model:     "llama-3.3-70b-versatile",
			APIKeyEnv: "GROQ_API_KEY",
			Enabled:   true,
		},
		{
			ID:        "perplexity",
			Type:      "openai",
			Name:      "Perplexity",
			Icon:      "🔮",
			BaseURL:   "https://api.perplexity.ai",
			Model:     "sonar",
			APIKeyEnv: "PERPLEXITY_API_KEY",
			Enabled:   true,
		},
		{
			ID:        "deepseek",
			Type:      "openai",
			Name:      "DeepSeek",
			Icon:      "🐋",
			BaseURL:   "https://api.deepseek.com",
			Model:     "deepseek-chat",
			APIKeyEnv: "DEEPSEEK_API_KEY",
			Enabled:   true,
		},
		{
			ID:        "gemini",
			Type:      "google",
			Name:      "Gemini",
			Icon:      "✨",
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta",
			Model:     "gemini-2.0-flash-exp",
			APIKeyEnv: "GEMINI_API_KEY",
			Enabled:   true,
		},
		{
			ID:        "claude",
			Type:      "anthropic",
			Name:      "Claude",
			Icon:      "🧠",
			BaseURL:   "https://api.anthropic.com/v1",
			Model:     "claude-3-5-haiku-latest",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			Enabled:   false,
			Config:    map[string]string{"version": "2023-06-01"},
		},
		{
			ID:      "llama-local",
			Type:    "ollama",
			Name:    "Ollama Local",
			Icon:    "🦙",
			BaseURL: "http://localhost:11434",
			Model:   "llama3.2",
			Enabled: false,
		},
		{
			ID:      "mock",
			Type:    "mock",
			Name:    "Mock",
			Icon:    "🧪",
			Enabled: false,
			Config:  map[string]string{"delay": "1s"},
		},
	}
}

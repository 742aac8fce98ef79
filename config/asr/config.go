package config

import "github.com/ilyakaznacheev/cleanenv"

type Config struct {
	Port     int    `env:"PORT" env-default:"50051"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	TranscribeModel string `env:"TRANSCRIBE_MODEL" env-default:"whisper-1"`
	SummaryModel    string `env:"SUMMARY_MODEL" env-default:"gpt-4o-mini"`
	Language        string `env:"TRANSCRIBE_LANGUAGE" env-default:"en"`
}

func MustLoad() *Config {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		panic("failed to read environment variables: " + err.Error())
	}

	return &cfg
}

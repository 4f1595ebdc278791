package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"routerd/internal/common/fsutil"
)

// Environment is the hub-related process environment, read once at startup
// and passed explicitly to the components that need it.
type Environment struct {
	HFToken         string `env:"HF_TOKEN"`
	HubToken        string `env:"HUGGING_FACE_HUB_TOKEN"`
	HubCache        string `env:"HUGGINGFACE_HUB_CACHE"`
	UserAgentOrigin string `env:"HF_HUB_USER_AGENT_ORIGIN"`
	Offline         string `env:"HF_HUB_OFFLINE"`
	Endpoint        string `env:"HF_ENDPOINT" envDefault:"https://huggingface.co"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

// Token returns the hub token, preferring HF_TOKEN over HUGGING_FACE_HUB_TOKEN.
func (e Environment) Token() string {
	if e.HFToken != "" {
		return e.HFToken
	}
	return e.HubToken
}

// OfflineMode reports whether HF_HUB_OFFLINE is exactly "1".
func (e Environment) OfflineMode() bool { return e.Offline == "1" }

// LoadDotenv loads variables from path without overriding variables that are
// already set. An empty path loads ./.env when it exists.
func LoadDotenv(path string) error {
	if path == "" {
		if !fsutil.IsFile(".env") {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ParseEnvironment builds an Environment from vars, or from the process
// environment when vars is nil.
func ParseEnvironment(vars map[string]string) (Environment, error) {
	var e Environment
	opts := env.Options{}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return Environment{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}

package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "LMS"

type (
	Config struct {
		AppName      string `mapstructure:"appName"`
		Env          string `mapstructure:"env"` // DEV (local; default), TEST, QA, PROD
		Build        string `mapstructure:"build"`
		Debug        bool   `mapstructure:"debug"`
		TestMode     bool   `mapstructure:"testMode"`
		RollbarToken string `mapstructure:"rollbarToken"`
		WorkDir      string `mapstructure:"workDir"`

		Server  ServerConfig  `mapstructure:"server"`
		Backend BackendConfig `mapstructure:"backend"`
		Storage StorageConfig `mapstructure:"storage"`
		Quiz    QuizConfig    `mapstructure:"quiz"`
	}

	ServerConfig struct {
		Address           string        `mapstructure:"address"`
		DebugAddress      string        `mapstructure:"debugAddress"`
		ShutdownTimeout   time.Duration `mapstructure:"shutdownTimeout"`
		RestoreWait       time.Duration `mapstructure:"restoreWait"`
		ClientIdleTimeout time.Duration `mapstructure:"clientIdleTimeout"`
		CookieSecure      bool          `mapstructure:"cookieSecure"`
		DisableReqLogs    bool          `mapstructure:"disableReqLogs"`
	}

	// BackendConfig points at the LMS REST API consumed by the frontend.
	BackendConfig struct {
		BaseURL string        `mapstructure:"baseURL"`
		Timeout time.Duration `mapstructure:"timeout"`
	}

	StorageConfig struct {
		Driver        string `mapstructure:"driver"` // memory | file | redis
		Path          string `mapstructure:"path"`
		RedisAddr     string `mapstructure:"redisAddr"`
		RedisPassword string `mapstructure:"redisPassword"`
		RedisDB       int    `mapstructure:"redisDB"`
		Prefix        string `mapstructure:"prefix"`
	}

	QuizConfig struct {
		BankPath      string        `mapstructure:"bankPath"`
		FeedbackDelay time.Duration `mapstructure:"feedbackDelay"`
	}
)

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "LMS")
	v.SetDefault("env", "DEV")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("workDir", ".")

	v.SetDefault("server.address", ":3000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.restoreWait", 2*time.Second)
	v.SetDefault("server.clientIdleTimeout", 30*time.Minute)
	v.SetDefault("server.cookieSecure", false)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("backend.baseURL", "http://localhost:8080/api")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "")
	v.SetDefault("storage.redisAddr", "localhost:6379")
	v.SetDefault("storage.redisPassword", "")
	v.SetDefault("storage.redisDB", 0)
	v.SetDefault("storage.prefix", "lms")

	v.SetDefault("quiz.bankPath", "")
	v.SetDefault("quiz.feedbackDelay", time.Second)
}

// NewConfig loads the app config from defaults, an optional config file named by LMS_CONFIG,
// config/.env.<env> and the environment (LMS_ prefix, "." replaced by "_").
func NewConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.Set("env", env)
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
	}

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return conf, nil
}

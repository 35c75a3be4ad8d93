package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr  string
		Debug bool
	}
	Database struct {
		Engine      string // "sqlite" or "postgres"
		SqlitePath  string
		PostgresDSN string
	}
	Ingest struct {
		MaxBytes       int64
		ScratchPath    string
		FetchTimeoutMS int
		DimensionMin   int
		DimensionMax   int
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
	}
	Moderation struct {
		Threshold float64
	}
	Archive struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetEnvPrefix("ANSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("server.debug", false)
	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.sqlitepath", "data/gallery.db")
	v.SetDefault("database.postgresdsn", "")
	v.SetDefault("ingest.maxbytes", 5_000_000)
	v.SetDefault("ingest.scratchpath", "data/imagefile")
	v.SetDefault("ingest.fetchtimeoutms", 10_000)
	v.SetDefault("ingest.dimensionmin", 20)
	v.SetDefault("ingest.dimensionmax", 1000)
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("moderation.threshold", 0.85)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.keyprefix", "ansified")
	v.SetDefault("archive.region", "us-east-1")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("aws.profile", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch cfg.Database.Engine {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unknown database engine %q", cfg.Database.Engine)
	}

	return cfg, nil
}

func loadDotEnv() {
	file, err := os.Open(".env")
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		partsIndex := strings.Index(line, "=")
		if partsIndex <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:partsIndex])
		value := strings.TrimSpace(line[partsIndex+1:])
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/avelichko/clip-keeper/models"
)

// StructuredJSONConfig mirrors StructuredConfig with JSON-friendly field
// types (Duration strings like "30s"). Parsed from the file named by the
// -c/-config flag or the CONFIG environment variable.
type StructuredJSONConfig struct {
	App struct {
		DeviceID     string `json:"device_id"`
		SyncPassword string `json:"sync_password"`
		LogFile      string `json:"log_file"`
	} `json:"app,omitempty"`

	Storage struct {
		DB struct {
			Driver string `json:"driver"`
			DSN    string `json:"dsn"`
		} `json:"db,omitempty"`

		CacheDir      string   `json:"cache_dir"`
		CacheMaxBytes int64    `json:"cache_max_bytes"`
		CacheTTL      Duration `json:"cache_ttl"`
	} `json:"storage,omitempty"`

	Remote struct {
		BaseURL        string   `json:"base_url"`
		BasePath       string   `json:"base_path"`
		Token          string   `json:"token"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"remote,omitempty"`

	Sync struct {
		Interval Duration        `json:"interval"`
		IndexTTL Duration        `json:"index_ttl"`
		Mode     models.SyncMode `json:"mode"`
	} `json:"sync,omitempty"`

	Files struct {
		MaxFileBytes       int64 `json:"max_file_bytes"`
		PackageTargetBytes int64 `json:"package_target_bytes"`
		UploadAttempts     int   `json:"upload_attempts"`
		DeleteConcurrency  int   `json:"delete_concurrency"`
	} `json:"files,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		TokenSignKey   string   `json:"token_sign_key"`
		DataDir        string   `json:"data_dir"`
		RequestTimeout Duration `json:"request_timeout"`
	} `json:"server,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			DeviceID:     jsonCfg.App.DeviceID,
			SyncPassword: jsonCfg.App.SyncPassword,
			LogFile:      jsonCfg.App.LogFile,
		},
		Storage: Storage{
			DB: DB{
				Driver: jsonCfg.Storage.DB.Driver,
				DSN:    jsonCfg.Storage.DB.DSN,
			},
			CacheDir:      jsonCfg.Storage.CacheDir,
			CacheMaxBytes: jsonCfg.Storage.CacheMaxBytes,
			CacheTTL:      time.Duration(jsonCfg.Storage.CacheTTL),
		},
		Remote: Remote{
			BaseURL:        jsonCfg.Remote.BaseURL,
			BasePath:       jsonCfg.Remote.BasePath,
			Token:          jsonCfg.Remote.Token,
			RequestTimeout: time.Duration(jsonCfg.Remote.RequestTimeout),
		},
		Sync: Sync{
			Interval: time.Duration(jsonCfg.Sync.Interval),
			IndexTTL: time.Duration(jsonCfg.Sync.IndexTTL),
			Mode:     jsonCfg.Sync.Mode,
		},
		Files: Files{
			MaxFileBytes:       jsonCfg.Files.MaxFileBytes,
			PackageTargetBytes: jsonCfg.Files.PackageTargetBytes,
			UploadAttempts:     jsonCfg.Files.UploadAttempts,
			DeleteConcurrency:  jsonCfg.Files.DeleteConcurrency,
		},
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			TokenSignKey:   jsonCfg.Server.TokenSignKey,
			DataDir:        jsonCfg.Server.DataDir,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
		},
		JSONFilePath: "",
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON
// unmarshaling from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

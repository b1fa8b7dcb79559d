package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/tourvault/internal/flagx"
	"github.com/dmitrijs2005/tourvault/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "25s" and integer nanoseconds.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	StagingDir            string         `json:"staging_dir"`
	WorkDir               string         `json:"work_dir"`
	ToursDir              string         `json:"tours_dir"`
	PublicBaseURL         string         `json:"public_base_url"`
	PresignExpiry         timex.Duration `json:"presign_expiry"`
	SessionRetention      timex.Duration `json:"session_retention"`
	ProgressTTL           timex.Duration `json:"progress_ttl"`
	UploadMinSize         uint64         `json:"upload_min_size"`
	UploadMaxSize         uint64         `json:"upload_max_size"`
	UploadRateLimit       int            `json:"upload_rate_limit"`
	UploadRateWindow      timex.Duration `json:"upload_rate_window"`
	RenameBudget          timex.Duration `json:"rename_budget"`
	RenameChunkThreshold  int            `json:"rename_chunk_threshold"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. The resulting values are copied into the target Config.
// If the file cannot be read or contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults and
// command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Bucket = c.S3Bucket
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.StagingDir = c.StagingDir
	config.WorkDir = c.WorkDir
	config.ToursDir = c.ToursDir
	config.PublicBaseURL = c.PublicBaseURL
	config.PresignExpiry = time.Duration(c.PresignExpiry.Duration)
	config.SessionRetention = time.Duration(c.SessionRetention.Duration)
	config.ProgressTTL = time.Duration(c.ProgressTTL.Duration)
	config.UploadMinSize = c.UploadMinSize
	config.UploadMaxSize = c.UploadMaxSize
	config.UploadRateLimit = c.UploadRateLimit
	config.UploadRateWindow = time.Duration(c.UploadRateWindow.Duration)
	config.RenameBudget = time.Duration(c.RenameBudget.Duration)
	config.RenameChunkThreshold = c.RenameChunkThreshold
}

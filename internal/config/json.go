package config

import (
	"encoding/json"
	"os"

	"github.com/clinmesh/clinsync/internal/flagx"
	"github.com/clinmesh/clinsync/internal/timex"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// Interval fields use timex.Duration so both "30m" and integer nanoseconds
// parse; after unmarshalling the values are copied into the runtime Config.
type JsonConfig struct {
	ListenAddr     string         `json:"listen_addr"`
	DatabaseDSN    string         `json:"database_dsn"`
	SecretKey      string         `json:"secret_key"`
	NodeID         string         `json:"node_id"`
	NodeName       string         `json:"node_name"`
	IdentitySeed   string         `json:"identity_seed"`
	OperatorToken  string         `json:"operator_token"`
	ChannelTTL     timex.Duration `json:"channel_ttl"`
	SessionTTL     timex.Duration `json:"session_ttl"`
	AttemptTimeout timex.Duration `json:"attempt_timeout"`
	PageSize       int            `json:"page_size"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
}

// parseJson overlays Config with values from the JSON file named by the
// -c/-config flags. Missing flag means nothing is loaded; an unreadable or
// invalid file panics, startup cannot proceed on a half-read config.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ListenAddr != "" {
		config.ListenAddr = c.ListenAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.NodeID != "" {
		config.NodeID = c.NodeID
	}
	if c.NodeName != "" {
		config.NodeName = c.NodeName
	}
	if c.IdentitySeed != "" {
		config.IdentitySeed = c.IdentitySeed
	}
	if c.OperatorToken != "" {
		config.OperatorToken = c.OperatorToken
	}
	if c.ChannelTTL.Duration != 0 {
		config.ChannelTTL = c.ChannelTTL.Duration
	}
	if c.SessionTTL.Duration != 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.AttemptTimeout.Duration != 0 {
		config.AttemptTimeout = c.AttemptTimeout.Duration
	}
	if c.PageSize != 0 {
		config.PageSize = c.PageSize
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}

// Package jsonconfig reads the JSON configuration file shared by the
// command-line applications.
//
// An example config file:
//
//	{
//	    "caster_host": "caster.example.com",
//	    "caster_port": 2101,
//	    "mountpoint": "RTCM3",
//	    "caster_user_name": "user",
//	    "caster_password": "password",
//	    "protocol_version": 2,
//	    "idle_timeout_seconds": 30,
//	    "backoff_base_seconds": 1,
//	    "backoff_cap_seconds": 60,
//	    "max_reconnect_attempts": 0,
//	    "position": {"lat": 48.0, "lon": 11.0, "alt": 520.0},
//	    "record_messages": true,
//	    "message_log_directory": "logs",
//	    "display_messages": true
//	}
//
// The caster fields describe the NTRIP connection.  The remaining
// fields are application toggles: record_messages writes the raw
// correction bytes to a daily log file in message_log_directory and
// display_messages prints each decoded message on standard output.
// Applications that don't use a field ignore it.
package jsonconfig

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/skybrush-io/flockwave-gps/coords"
	"github.com/skybrush-io/flockwave-gps/ntrip"
)

// Config contains the values from the JSON config file.
type Config struct {
	CasterHost           string  `json:"caster_host"`
	CasterPort           int     `json:"caster_port"`
	Mountpoint           string  `json:"mountpoint"`
	CasterUserName       string  `json:"caster_user_name"`
	CasterPassword       string  `json:"caster_password"`
	ProtocolVersion      int     `json:"protocol_version"`
	IdleTimeoutSeconds   int     `json:"idle_timeout_seconds"`
	BackoffBaseSeconds   float64 `json:"backoff_base_seconds"`
	BackoffCapSeconds    float64 `json:"backoff_cap_seconds"`
	MaxReconnectAttempts int     `json:"max_reconnect_attempts"`

	// Position, when given, is reported to the caster so that virtual
	// reference station services can synthesise a stream for it.
	Position *coords.GeodeticCoordinate `json:"position"`

	RecordMessages      bool   `json:"record_messages"`
	MessageLogDirectory string `json:"message_log_directory"`
	DisplayMessages     bool   `json:"display_messages"`
}

// GetJSONConfigFromFile gets the config from the file given by
// configFileName.
func GetJSONConfigFromFile(configFileName string, logger *slog.Logger) (*Config, error) {

	jsonReader, fileErr := os.Open(configFileName)
	if fileErr != nil {
		return nil, fileErr
	}
	defer jsonReader.Close()

	return getJSONConfig(jsonReader, logger)
}

// getJSONConfig reads from the given source and returns the config.
func getJSONConfig(jsonSource io.Reader, logger *slog.Logger) (*Config, error) {

	jsonBytes, jsonReadError := io.ReadAll(jsonSource)
	if jsonReadError != nil {
		// We can't read the control file - permissions?
		logger.Error("cannot read the JSON control file", "error", jsonReadError)
		return nil, jsonReadError
	}

	var config Config
	jsonParseError := json.Unmarshal(jsonBytes, &config)
	if jsonParseError != nil {
		logger.Error("cannot parse the JSON control file", "error", jsonParseError)
		return nil, jsonParseError
	}

	return &config, nil
}

// ClientConfig converts the file values into the streaming client's
// configuration.  Zero fields stay zero and pick up the client's own
// defaults.
func (c *Config) ClientConfig() ntrip.Config {
	return ntrip.Config{
		Host:                 c.CasterHost,
		Port:                 c.CasterPort,
		Mountpoint:           c.Mountpoint,
		Username:             c.CasterUserName,
		Password:             c.CasterPassword,
		ProtocolVersion:      c.ProtocolVersion,
		IdleTimeout:          time.Duration(c.IdleTimeoutSeconds) * time.Second,
		BackoffBase:          time.Duration(c.BackoffBaseSeconds * float64(time.Second)),
		BackoffCap:           time.Duration(c.BackoffCapSeconds * float64(time.Second)),
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		Position:             c.Position,
	}
}

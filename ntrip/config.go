package ntrip

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skybrush-io/flockwave-gps/coords"
)

// DefaultPort is the port NTRIP casters conventionally listen on.
const DefaultPort = 2101

const (
	defaultIdleTimeout      = 30 * time.Second
	defaultBackoffBase      = time.Second
	defaultBackoffCap       = 60 * time.Second
	defaultDialTimeout      = 10 * time.Second
	defaultPositionInterval = 30 * time.Second
	defaultUserAgent        = "NTRIP FlockwaveGPS/1.0"
)

// Config describes how to reach a caster and how the session should
// behave once it is connected.
type Config struct {
	// Host and Port locate the caster.  Port 0 means the conventional
	// port 2101.
	Host string
	Port int

	// Mountpoint is the stream to request.
	Mountpoint string

	// Username and Password authenticate the client.  Both empty means
	// an unauthenticated request.
	Username string
	Password string

	// ProtocolVersion selects the handshake framing: 1 for the legacy
	// SOURCE line, anything else for HTTP-style GET with Basic auth.
	ProtocolVersion int

	// IdleTimeout is how long the caster may stay silent before the
	// session is treated as stalled and reconnects.  Zero means 30 s.
	IdleTimeout time.Duration

	// BackoffBase and BackoffCap bound the exponential backoff between
	// reconnect attempts.  Zero means 1 s and 60 s.
	BackoffBase time.Duration
	BackoffCap  time.Duration

	// MaxReconnectAttempts limits consecutive failed attempts before
	// Run gives up.  Zero means retry until cancelled.  The counter
	// resets whenever a connection reaches the streaming state.
	MaxReconnectAttempts int

	// DialTimeout bounds the connection attempt.  Zero means 10 s.
	DialTimeout time.Duration

	// Position, when set, is reported to the caster as an NMEA GGA
	// sentence after the handshake and then every PositionInterval.
	// Virtual reference station casters need it to start the stream.
	Position *coords.GeodeticCoordinate

	// PositionInterval is how often the position report is repeated.
	// Zero means 30 s.
	PositionInterval time.Duration

	// UserAgent goes into the handshake request.
	UserAgent string
}

// withDefaults fills in the zero fields.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BackoffCap == 0 {
		c.BackoffCap = defaultBackoffCap
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
	if c.PositionInterval == 0 {
		c.PositionInterval = defaultPositionInterval
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.ProtocolVersion == 0 {
		c.ProtocolVersion = 2
	}
	return c
}

// address returns the host:port to dial.
func (c Config) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseURI builds a Config from a caster URI of the form
//
//	ntrip://[user[:password]@]host[:port][/mountpoint]
//
// The ntrip scheme means protocol version 2; ntrip1 selects the
// legacy version 1 handshake.  A missing port means 2101.
func ParseURI(uri string) (Config, error) {
	var config Config

	if !strings.HasPrefix(uri, "ntrip://") && !strings.HasPrefix(uri, "ntrip1://") {
		uri = "ntrip://" + uri
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return config, fmt.Errorf("ntrip: parsing caster URI: %w", err)
	}

	switch parsed.Scheme {
	case "ntrip":
		config.ProtocolVersion = 2
	case "ntrip1":
		config.ProtocolVersion = 1
	default:
		return config, fmt.Errorf("ntrip: unsupported scheme %q", parsed.Scheme)
	}

	config.Host = parsed.Hostname()
	if config.Host == "" {
		return config, fmt.Errorf("ntrip: no host in %q", uri)
	}

	config.Port = DefaultPort
	if portString := parsed.Port(); portString != "" {
		port, err := strconv.Atoi(portString)
		if err != nil {
			return config, fmt.Errorf("ntrip: bad port in %q", uri)
		}
		config.Port = port
	}

	if parsed.User != nil {
		config.Username = parsed.User.Username()
		config.Password, _ = parsed.User.Password()
	}

	if len(parsed.Path) > 1 {
		config.Mountpoint = strings.TrimPrefix(parsed.Path, "/")
	}

	return config, nil
}

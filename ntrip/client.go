// Package ntrip implements a streaming NTRIP client: it connects to a
// caster, requests a mountpoint and feeds the resulting RTCM3 byte
// stream through the frame decoder, delivering decoded messages to a
// subscriber in arrival order.
//
// The client is built to be left running.  A dropped connection, a
// caster restart or a stalled stream leads to a reconnect with bounded
// exponential backoff; only cancellation, an exhausted attempt budget
// or a fatal handshake failure (bad credentials, unknown mountpoint)
// end the session for good.
package ntrip

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/skybrush-io/flockwave-gps/nmea"
	"github.com/skybrush-io/flockwave-gps/rtcm/handler"
)

// State is where the client currently is in its connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingResponse
	StateStreaming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingResponse:
		return "awaiting response"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Stats counts what happened over the lifetime of a client, across
// reconnects.
type Stats struct {
	// Attempts is the number of connection attempts.
	Attempts uint64

	// Connects is the number of sessions that reached streaming.
	Connects uint64

	// BytesReceived is the total stream bytes read.
	BytesReceived uint64

	// Messages is the number of RTCM messages delivered.
	Messages uint64

	// CRCFailures and SkippedBytes aggregate the decoder counters of
	// all sessions so far.
	CRCFailures  uint64
	SkippedBytes uint64
}

// Client streams corrections from one caster mountpoint.  Create one
// with New and drive it with Run; State and Stats may be read from
// other goroutines while Run is going.
type Client struct {
	config Config
	logger *slog.Logger
	state  atomic.Int32

	mu    sync.Mutex
	stats Stats
}

// New creates a client.  The logger may be nil.
func New(config Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{config: config.withDefaults(), logger: logger}
}

// State returns where the client currently is.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Stats returns a copy of the lifetime counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run connects and streams until the context is cancelled, a fatal
// handshake failure occurs, or the reconnect budget runs out.  The
// subscriber is called from a single goroutine, one message at a time,
// in arrival order; it may be nil.  Whatever ends the session, the
// transport is closed before Run returns.
func (c *Client) Run(ctx context.Context, subscriber func(handler.Message)) error {
	defer c.setState(StateDisconnected)

	attempts := 0
	backoff := c.config.BackoffBase

	for {
		streamed, err := c.runSession(ctx, subscriber)

		if errors.Is(err, ErrAuthentication) || errors.Is(err, ErrMountpointNotFound) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if streamed {
			attempts = 0
			backoff = c.config.BackoffBase
		}
		attempts++
		if c.config.MaxReconnectAttempts > 0 && attempts > c.config.MaxReconnectAttempts {
			if err == nil {
				err = errors.New("the caster keeps closing the stream")
			}
			return fmt.Errorf("ntrip: giving up after %d failed attempts: %w", attempts-1, err)
		}

		c.setState(StateReconnecting)
		c.logger.Info("reconnecting",
			"caster", c.config.address(), "backoff", backoff, "reason", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, c.config.BackoffCap)
	}
}

// runSession runs one connect-handshake-stream cycle.  The boolean
// says whether the session reached the streaming state, which is what
// resets the reconnect budget.
func (c *Client) runSession(ctx context.Context, subscriber func(handler.Message)) (bool, error) {
	c.setState(StateConnecting)
	c.mu.Lock()
	c.stats.Attempts++
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.address())
	if err != nil {
		return false, fmt.Errorf("ntrip: connecting to %s: %w", c.config.address(), err)
	}
	defer conn.Close()

	// Cancellation closes the transport, which unblocks any pending
	// read; the read loop then sees ctx.Err() and stops.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)

	c.setState(StateAwaitingResponse)
	if err := c.handshake(conn, reader); err != nil {
		return false, err
	}

	c.setState(StateStreaming)
	c.mu.Lock()
	c.stats.Connects++
	c.mu.Unlock()
	c.logger.Info("streaming",
		"caster", c.config.address(), "mountpoint", c.config.Mountpoint)

	if c.config.Position != nil {
		go c.reportPosition(ctx, conn)
	}

	return true, c.stream(ctx, conn, reader, subscriber)
}

// handshake sends the request for the mountpoint and interprets the
// caster's answer.
func (c *Client) handshake(conn net.Conn, reader *bufio.Reader) error {
	conn.SetDeadline(time.Now().Add(c.config.DialTimeout))
	defer conn.SetDeadline(time.Time{})

	if _, err := conn.Write([]byte(c.request())); err != nil {
		return fmt.Errorf("ntrip: sending the handshake: %w", err)
	}

	statusLine, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("ntrip: reading the handshake response: %w", err)
	}
	statusLine = strings.TrimRight(statusLine, "\r\n")

	if c.config.ProtocolVersion == 1 {
		return checkLegacyResponse(statusLine)
	}
	return checkHTTPResponse(statusLine, reader)
}

// request builds the handshake request in the configured framing.
func (c *Client) request() string {
	var request strings.Builder

	if c.config.ProtocolVersion == 1 {
		fmt.Fprintf(&request, "SOURCE %s %s\r\n", c.config.Password, c.config.Mountpoint)
		return request.String()
	}

	fmt.Fprintf(&request, "GET /%s HTTP/1.1\r\n", c.config.Mountpoint)
	fmt.Fprintf(&request, "Host: %s\r\n", c.config.address())
	fmt.Fprintf(&request, "User-Agent: %s\r\n", c.config.UserAgent)
	request.WriteString("Ntrip-Version: Ntrip/2.0\r\n")
	request.WriteString("Accept: */*\r\n")
	if c.config.Username != "" || c.config.Password != "" {
		credentials := base64.StdEncoding.EncodeToString(
			[]byte(c.config.Username + ":" + c.config.Password))
		fmt.Fprintf(&request, "Authorization: Basic %s\r\n", credentials)
	}
	request.WriteString("\r\n")
	return request.String()
}

// checkLegacyResponse interprets the single reply line of the legacy
// handshake: OK, or an ERROR line saying why.
func checkLegacyResponse(statusLine string) error {
	if strings.HasPrefix(statusLine, "OK") {
		return nil
	}
	lowered := strings.ToLower(statusLine)
	switch {
	case strings.Contains(lowered, "password") || strings.Contains(lowered, "unauthorized"):
		return ErrAuthentication
	case strings.Contains(lowered, "mount"):
		return ErrMountpointNotFound
	}
	return &InvalidResponseError{Line: statusLine}
}

// checkHTTPResponse interprets an HTTP-style status line.  An ICY
// response has no header block; an HTTP response does, and it is
// consumed here so that the reader is left at the first stream byte.
func checkHTTPResponse(statusLine string, reader *bufio.Reader) error {
	fields := strings.Fields(statusLine)
	if len(fields) < 2 {
		return &InvalidResponseError{Line: statusLine}
	}
	protocol, code := fields[0], fields[1]

	switch code {
	case "200":
	case "401", "403":
		return ErrAuthentication
	case "404":
		return ErrMountpointNotFound
	default:
		return &InvalidResponseError{Line: statusLine}
	}

	if protocol != "ICY" {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("ntrip: reading the response headers: %w", err)
			}
			if line == "\r\n" || line == "\n" {
				break
			}
		}
	}
	return nil
}

// reportPosition keeps telling the caster where we are, as a GGA
// sentence.  Virtual reference station casters synthesise the
// correction stream for the reported position and will not start
// sending without one.
func (c *Client) reportPosition(ctx context.Context, conn net.Conn) {
	ticker := time.NewTicker(c.config.PositionInterval)
	defer ticker.Stop()

	for {
		sentence := nmea.GGAFromPosition(*c.config.Position, time.Time{})
		if _, err := conn.Write([]byte(sentence)); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// stream reads the correction bytes and pumps them through the frame
// decoder until the stream ends, stalls or is cancelled.
func (c *Client) stream(ctx context.Context, conn net.Conn, reader *bufio.Reader,
	subscriber func(handler.Message)) error {

	decoder := handler.New(c.logger)
	chIn := make(chan byte, 4096)
	chOut := make(chan handler.Message, 16)
	go decoder.HandleMessages(chIn, chOut)

	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		for message := range chOut {
			if subscriber != nil {
				subscriber(message)
			}
			c.mu.Lock()
			c.stats.Messages++
			c.mu.Unlock()
		}
	}()

	// finish lets the decoder drain whatever it already has, waits for
	// the last delivery and folds the session counters into the
	// lifetime stats.  A frame still in progress is simply dropped.
	finish := func(err error) error {
		close(chIn)
		<-delivered
		sessionStats := decoder.Stats()
		c.mu.Lock()
		c.stats.CRCFailures += sessionStats.CRCFailures
		c.stats.SkippedBytes += sessionStats.SkippedBytes
		c.mu.Unlock()
		return err
	}

	buffer := make([]byte, 2048)
	for {
		n, err := c.readChunk(conn, reader, buffer)
		if n > 0 {
			c.mu.Lock()
			c.stats.BytesReceived += uint64(n)
			c.mu.Unlock()
			for _, b := range buffer[:n] {
				select {
				case chIn <- b:
				case <-ctx.Done():
					return finish(ctx.Err())
				}
			}
		}
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return finish(ctx.Err())
			case errors.Is(err, os.ErrDeadlineExceeded):
				c.logger.Warn("stream stalled", "idleTimeout", c.config.IdleTimeout)
				return finish(ErrIdleTimeout)
			case errors.Is(err, io.EOF):
				// The caster closed the stream in an orderly way.
				return finish(nil)
			default:
				return finish(fmt.Errorf("ntrip: reading the stream: %w", err))
			}
		}
	}
}

// readChunk is the single wait point of a streaming session: one read,
// bounded by the idle deadline.  Cancellation does not need its own
// timer because it closes the transport, which fails the read.
func (c *Client) readChunk(conn net.Conn, reader *bufio.Reader, buffer []byte) (int, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.config.IdleTimeout)); err != nil {
		return 0, err
	}
	return reader.Read(buffer)
}

// The ntripclient tool connects to an NTRIP caster, requests a
// mountpoint and consumes the RTCM3 correction stream.  Depending on
// the config it displays each decoded message on standard output,
// records the raw correction bytes in a daily log file, or both.
//
// Usage:
//
//	ntripclient -config config.json [-verbose]
//
// The config file is described in the jsonconfig package.  A typical
// file names the caster, the mountpoint and the credentials, and turns
// on either display_messages or record_messages.
//
// The client reconnects on its own when the caster drops the
// connection or goes silent, so the tool can be left running as a
// service feeding a rover.  It stops on SIGINT and SIGTERM, or when
// the caster rejects the credentials or the mountpoint, which no
// amount of retrying will fix.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goblimey/go-tools/dailylogger"

	"github.com/skybrush-io/flockwave-gps/jsonconfig"
	"github.com/skybrush-io/flockwave-gps/logging"
	"github.com/skybrush-io/flockwave-gps/ntrip"
	"github.com/skybrush-io/flockwave-gps/rtcm/handler"
)

func main() {
	configFileName := flag.String("config", "ntripclient.json", "name of the JSON config file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := logging.New("ntripclient", *verbose)

	config, err := jsonconfig.GetJSONConfigFromFile(*configFileName, logger)
	if err != nil {
		logger.Error("cannot read the config", "file", *configFileName, "error", err)
		os.Exit(1)
	}

	var recorder io.Writer
	if config.RecordMessages {
		recorder = dailylogger.New(config.MessageLogDirectory, "ntripclient.", ".rtcm")
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := ntrip.New(config.ClientConfig(), logger)

	err = client.Run(ctx, func(message handler.Message) {
		if config.DisplayMessages {
			fmt.Println(message.String())
		}
		if recorder != nil {
			if _, err := recorder.Write(message.RawData); err != nil {
				logger.Error("cannot record the message", "error", err)
			}
		}
	})

	stats := client.Stats()
	logger.Info("session ended",
		"messages", stats.Messages,
		"bytes", stats.BytesReceived,
		"crcFailures", stats.CRCFailures,
		"skippedBytes", stats.SkippedBytes)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("streaming failed", "error", err)
		os.Exit(1)
	}
}

// The displayrtcm tool reads bytes from a file or from standard input,
// ignores anything that's not in RTCM version 3 format and writes a
// readable version of the messages to standard output.
//
// Raw RTCM3 is a tightly compressed binary format, not designed to be
// read by a human.  The most important message types for accurate GNSS
// work are type 1005 and 1006, which give the position of the base
// station, and the Multiple Signal Messages (MSM4 or MSM7), which
// carry the base station's observations of satellite signals.  The
// tool interprets those as plain text after a hex dump of the frame.
// Other message types are shown as a hex dump only.
//
// For example:
//
//	message type 1005, frame length 25 - station 2, ECEF (3821407.1441, 323155.2809, 5087237.4346)
//	00000000  d3 00 13 3e d0 00 02 74  ...
//
// The tool is useful for trouble-shooting, particularly when you have
// a misbehaving base station and are trying to figure out what it's
// doing.  You can see what types of messages it's sending, if any,
// which satellites it received signals from and what the signals
// contained.
//
// Usage:
//
//	displayrtcm [file]
//
// With no argument, or with "-", the input is standard input, so the
// output of the ntripclient tool can be piped straight in.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/skybrush-io/flockwave-gps/logging"
	"github.com/skybrush-io/flockwave-gps/rtcm/handler"
)

func main() {
	logger := logging.New("displayrtcm", false)

	reader, err := openInput(os.Args)
	if err != nil {
		logger.Error("cannot open the input", "error", err)
		os.Exit(1)
	}

	displayAll(reader, os.Stdout, logger)
}

// openInput returns the input named on the command line, or standard
// input if there isn't one.
func openInput(args []string) (io.Reader, error) {
	if len(args) < 2 || args[1] == "-" {
		return os.Stdin, nil
	}
	return os.Open(args[1])
}

// displayAll scans the reader for RTCM3 messages and writes a readable
// form of each one to the writer.
func displayAll(reader io.Reader, writer io.Writer, logger *slog.Logger) {
	decoder := handler.New(logger)
	chIn := make(chan byte, 4096)
	chOut := make(chan handler.Message, 16)
	go decoder.HandleMessages(chIn, chOut)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for message := range chOut {
			displayMessage(writer, message)
		}
	}()

	buffer := make([]byte, 4096)
	for {
		n, err := reader.Read(buffer)
		for _, b := range buffer[:n] {
			chIn <- b
		}
		if err != nil {
			break
		}
	}
	close(chIn)
	<-done

	stats := decoder.Stats()
	fmt.Fprintf(writer, "%d messages, %d CRC failures, %d bytes skipped\n",
		stats.Messages, stats.CRCFailures, stats.SkippedBytes)
}

// displayMessage writes one message: the summary line, then the frame
// as a hex dump.
func displayMessage(writer io.Writer, message handler.Message) {
	fmt.Fprintln(writer, message.String())
	fmt.Fprintln(writer, hex.Dump(message.RawData))
}

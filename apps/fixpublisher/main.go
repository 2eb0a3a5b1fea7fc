// The fixpublisher tool reads NMEA sentences from a GNSS receiver on a
// serial port, merges them into position fixes and publishes each fix
// as JSON to an MQTT topic.
//
// A receiver reports one fix as a burst of sentences: GGA with the
// position and fix quality, RMC with the date, GSA with the dilution
// of precision and so on.  The fixpublisher accumulates the burst per
// talker and publishes the merged fix whenever a GGA sentence
// completes it, so a subscriber sees one message per fix, not one per
// sentence.
//
// Usage:
//
//	fixpublisher [-device /dev/ttyACM0] [-baud 9600]
//	             [-broker tcp://localhost:1883] [-topic gnss/fix]
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jacobsa/go-serial/serial"

	"github.com/skybrush-io/flockwave-gps/logging"
	"github.com/skybrush-io/flockwave-gps/nmea"
)

// fixPayload is the JSON shape of one published fix.
type fixPayload struct {
	Time       *time.Time `json:"time,omitempty"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	Alt        float64    `json:"alt"`
	Quality    string     `json:"quality,omitempty"`
	Satellites *int       `json:"satellites,omitempty"`
	HDOP       *float64   `json:"hdop,omitempty"`
	SpeedKnots *float64   `json:"speed_knots,omitempty"`
	CourseDeg  *float64   `json:"course_deg,omitempty"`
}

func main() {
	device := flag.String("device", "/dev/ttyACM0", "serial device of the GNSS receiver")
	baud := flag.Uint("baud", 9600, "baud rate of the serial device")
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URI")
	topic := flag.String("topic", "gnss/fix", "MQTT topic to publish fixes on")
	clientID := flag.String("clientid", "fixpublisher", "MQTT client identifier")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger := logging.New("fixpublisher", *verbose)

	opts := mqtt.NewClientOptions().
		AddBroker(*broker).
		SetClientID(*clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logger.Error("cannot connect to the MQTT broker", "broker", *broker,
			"error", token.Error())
		os.Exit(1)
	}
	defer client.Disconnect(250)
	logger.Info("connected to the MQTT broker", "broker", *broker)

	port, err := serial.Open(serial.OpenOptions{
		PortName:        *device,
		BaudRate:        *baud,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	})
	if err != nil {
		logger.Error("cannot open the serial device", "device", *device, "error", err)
		os.Exit(1)
	}
	defer port.Close()
	logger.Info("reading from the GNSS receiver", "device", *device, "baud", *baud)

	if err := publishFixes(port, client, *topic, logger); err != nil {
		logger.Error("reading the receiver failed", "error", err)
		os.Exit(1)
	}
}

// publishFixes reads sentences from the receiver until the stream ends
// and publishes one MQTT message per completed fix.
func publishFixes(reader io.Reader, client mqtt.Client, topic string, logger *slog.Logger) error {
	bufferedReader := bufio.NewReader(reader)
	accumulator := nmea.NewAccumulator()

	for {
		line, err := bufferedReader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		record, err := accumulator.Feed(line)
		if err != nil {
			// Noise on the serial line; the next sentence resyncs.
			logger.Debug("rejected sentence", "error", err)
			continue
		}

		// GGA closes out a fix.  Everything else just accumulates.
		if !strings.Contains(line, "GGA,") || record.Position == nil {
			continue
		}

		payload, err := json.Marshal(payloadFromRecord(record))
		if err != nil {
			return err
		}

		token := client.Publish(topic, 0, true, payload)
		token.Wait()
		if token.Error() != nil {
			logger.Error("cannot publish the fix", "error", token.Error())
			continue
		}
		logger.Debug("published fix",
			"lat", record.Position.Lat, "lon", record.Position.Lon)
	}
}

func payloadFromRecord(record *nmea.FixRecord) fixPayload {
	payload := fixPayload{
		Time:       record.Time,
		Lat:        record.Position.Lat,
		Lon:        record.Position.Lon,
		Alt:        record.Position.Alt,
		Satellites: record.SatelliteCount,
		HDOP:       record.HDOP,
		SpeedKnots: record.SpeedKnots,
		CourseDeg:  record.CourseDegrees,
	}
	if record.Quality != nil {
		payload.Quality = record.Quality.String()
	}
	return payload
}

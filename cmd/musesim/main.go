// Package main provides a synthetic Muse headband traffic generator.
// It speaks the muse-io OSC protocol over UDP or length-prefixed TCP:
// a /muse/config announcement first, then paced EEG, accelerometer,
// battery, band power and blink streams. Useful for exercising a
// receiver without hardware on the desk.
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/musestreams/muse"
)

var (
	version = "0.1.0"
)

type cliFlags struct {
	host        string
	port        int
	proto       string
	serial      string
	preset      string
	eegHz       float64
	accHz       float64
	elementsHz  float64
	battery     time.Duration
	duration    time.Duration
	timestamps  bool
	seed        int64
	verbose     bool
	showVersion bool
}

func parseCommandLineFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.host, "host", "localhost", "Receiver host")
	flag.IntVar(&flags.port, "port", 5000, "Receiver port")
	flag.StringVar(&flags.proto, "proto", "udp", "Transport: udp or tcp")
	flag.StringVar(&flags.serial, "serial", "Muse-1078", "Headset serial number")
	flag.StringVar(&flags.preset, "preset", "14", "Headset preset reported in config")
	flag.Float64Var(&flags.eegHz, "eeg-hz", 220, "EEG sample rate")
	flag.Float64Var(&flags.accHz, "acc-hz", 50, "Accelerometer sample rate")
	flag.Float64Var(&flags.elementsHz, "elements-hz", 10, "Band power / score / blink rate")
	flag.DurationVar(&flags.battery, "battery-interval", 10*time.Second, "Battery report interval")
	flag.DurationVar(&flags.duration, "duration", 0, "Run time, 0 to run until interrupted")
	flag.BoolVar(&flags.timestamps, "timestamps", false, "Append sequence timestamps to EEG and accelerometer samples")
	flag.Int64Var(&flags.seed, "seed", 0, "Random seed, 0 to derive from clock")
	flag.BoolVar(&flags.verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version information")

	flag.Parse()
	return flags
}

func main() {
	flags := parseCommandLineFlags()

	if flags.showVersion {
		fmt.Printf("musesim version %s\n", version)
		return
	}

	logger := setupLogger(flags.verbose)
	slog.SetDefault(logger)

	if err := run(flags); err != nil {
		slog.Error("Simulator failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "musesim")
}

func run(flags *cliFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.duration > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, flags.duration)
		defer timeoutCancel()
	}

	sender, err := newSender(flags.proto, flags.host, flags.port)
	if err != nil {
		return err
	}
	defer sender.Close()

	seed := flags.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim := &simulator{
		sender:     sender,
		serial:     flags.serial,
		preset:     flags.preset,
		timestamps: flags.timestamps,
		rng:        rand.New(rand.NewSource(seed)),
	}

	slog.Info("Simulator starting",
		"target", fmt.Sprintf("%s://%s:%d", flags.proto, flags.host, flags.port),
		"serial", flags.serial,
		"eeg_hz", flags.eegHz,
		"seed", seed)

	// Config announcement precedes telemetry, as muse-io does on connect.
	if err := sim.sendConfig(); err != nil {
		return fmt.Errorf("send config: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sim.eegLoop(ctx, flags.eegHz) })
	g.Go(func() error { return sim.accelLoop(ctx, flags.accHz) })
	g.Go(func() error { return sim.elementsLoop(ctx, flags.elementsHz) })
	g.Go(func() error { return sim.batteryLoop(ctx, flags.battery) })

	err = g.Wait()
	if err == context.Canceled || err == context.DeadlineExceeded {
		err = nil
	}
	slog.Info("Simulator stopped")
	return err
}

// sender abstracts the two muse-io transports. UDP carries raw OSC
// packets; TCP prefixes each packet with a 4-byte big-endian length.
type sender interface {
	Send(msg *osc.Message) error
	Close() error
}

func newSender(proto, host string, port int) (sender, error) {
	switch proto {
	case "udp":
		return &udpSender{client: osc.NewClient(host, port)}, nil
	case "tcp":
		conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			return nil, fmt.Errorf("dial receiver: %w", err)
		}
		return &tcpSender{conn: conn}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want udp or tcp)", proto)
	}
}

type udpSender struct {
	client *osc.Client
}

func (s *udpSender) Send(msg *osc.Message) error { return s.client.Send(msg) }
func (s *udpSender) Close() error                { return nil }

type tcpSender struct {
	conn net.Conn
}

func (s *tcpSender) Send(msg *osc.Message) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	_, err = s.conn.Write(frame)
	return err
}

func (s *tcpSender) Close() error { return s.conn.Close() }

type simulator struct {
	sender     sender
	serial     string
	preset     string
	timestamps bool
	rng        *rand.Rand

	seq int32
}

func (s *simulator) sendConfig() error {
	configJSON := fmt.Sprintf(`{"mac_addr":"00:06:66:6E:CD:12","serial_number":%q,"preset":%q,`+
		`"eeg_channel_count":4,"eeg_channel_layout":"TP9 FP1 FP2 TP10","eeg_units":"microvolts",`+
		`"eeg_sample_frequency_hz":220,"eeg_output_frequency_hz":220,"acc_units":"milli_g",`+
		`"acc_sample_frequency_hz":50,"battery_data_enabled":true}`,
		s.serial, s.preset)
	return s.sender.Send(osc.NewMessage(muse.AddrConfig, configJSON))
}

// eegLoop emits 4-channel EEG samples: a slow alpha-band sine per channel
// with gaussian noise on top, roughly what a resting headset reports.
func (s *simulator) eegLoop(ctx context.Context, hz float64) error {
	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	start := time.Now()
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		t := time.Since(start).Seconds()
		msg := osc.NewMessage(muse.AddrEEG)
		for ch := 0; ch < 4; ch++ {
			base := 800.0 + 40.0*math.Sin(2*math.Pi*10*t+float64(ch))
			msg.Append(float32(base + s.rng.NormFloat64()*15))
		}
		s.appendTimestamps(msg)
		if err := s.sender.Send(msg); err != nil {
			return fmt.Errorf("send eeg: %w", err)
		}
	}
}

// accelLoop emits 3-axis accelerometer samples for a mostly still head.
func (s *simulator) accelLoop(ctx context.Context, hz float64) error {
	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		msg := osc.NewMessage(muse.AddrAccel)
		msg.Append(float32(s.rng.NormFloat64() * 5))
		msg.Append(float32(s.rng.NormFloat64() * 5))
		msg.Append(float32(1000 + s.rng.NormFloat64()*5))
		s.appendTimestamps(msg)
		if err := s.sender.Send(msg); err != nil {
			return fmt.Errorf("send accel: %w", err)
		}
	}
}

// elementsLoop emits the derived streams muse-io computes on the host:
// relative band powers, experimental scores and the blink channel.
func (s *simulator) elementsLoop(ctx context.Context, hz float64) error {
	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	bandAddrs := []string{
		muse.AddrAlphaRelative,
		muse.AddrBetaRelative,
		muse.AddrThetaRelative,
		muse.AddrDeltaRelative,
	}
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		for _, addr := range bandAddrs {
			msg := osc.NewMessage(addr)
			for ch := 0; ch < 4; ch++ {
				msg.Append(float32(s.rng.Float64()))
			}
			if err := s.sender.Send(msg); err != nil {
				return fmt.Errorf("send band power: %w", err)
			}
		}

		mellow := osc.NewMessage(muse.AddrMellow, float32(s.rng.Float64()))
		if err := s.sender.Send(mellow); err != nil {
			return fmt.Errorf("send mellow: %w", err)
		}
		concentration := osc.NewMessage(muse.AddrConcentration, float32(s.rng.Float64()))
		if err := s.sender.Send(concentration); err != nil {
			return fmt.Errorf("send concentration: %w", err)
		}

		// Blink channel is continuous; a real blink is rare.
		blink := int32(0)
		if s.rng.Float64() < 0.05 {
			blink = muse.BlinkDetected
			slog.Debug("Blink emitted")
		}
		if err := s.sender.Send(osc.NewMessage(muse.AddrBlink, blink)); err != nil {
			return fmt.Errorf("send blink: %w", err)
		}
	}
}

// batteryLoop reports a slowly draining battery every interval.
func (s *simulator) batteryLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	percent := int32(9873) // centipercent, as the headset reports it
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		msg := osc.NewMessage(muse.AddrBattery, percent, int32(4123), int32(61), int32(28))
		if err := s.sender.Send(msg); err != nil {
			return fmt.Errorf("send battery: %w", err)
		}
		if percent > 100 {
			percent -= 7
		}
	}
}

// appendTimestamps appends the optional 2-component sequence timestamp the
// headset adds to EEG and accelerometer samples on some presets.
func (s *simulator) appendTimestamps(msg *osc.Message) {
	if !s.timestamps {
		return
	}
	s.seq++
	msg.Append(int32(time.Now().Unix()))
	msg.Append(s.seq)
}

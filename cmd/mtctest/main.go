// Command mtctest sends and receives MIDI Timecode for checking ports,
// cables and receivers without running the generator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-mtcgen/engine"
	"go-mtcgen/midi"
	"go-mtcgen/timecode"
	"go-mtcgen/transport"
)

var (
	fps      string
	onSerial bool
	from     string
	duration time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "mtctest",
		Short:         "MIDI Timecode test scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&fps, "fps", "30", "frame rate")
	root.PersistentFlags().BoolVar(&onSerial, "serial", false, "treat the port argument as a serial device")

	quarter := &cobra.Command{
		Use:   "quarter <port>",
		Short: "Stream quarter frames in real time",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuarter,
	}
	quarter.Flags().StringVar(&from, "from", "00:00:00:00", "start timecode")
	quarter.Flags().DurationVar(&duration, "for", 10*time.Second, "how long to stream")

	osc := &cobra.Command{
		Use:   "osc [host:port]",
		Short: "Play a rolling OSC transport at the generator",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runOSC,
	}
	osc.Flags().StringVar(&from, "from", "00:00:00:00", "start position")
	osc.Flags().DurationVar(&duration, "for", 10*time.Second, "how long to roll before stopping")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List MIDI ports and serial devices",
			Args:  cobra.NoArgs,
			RunE:  runList,
		},
		&cobra.Command{
			Use:   "full <port> [timecode]",
			Short: "Send one full-frame message",
			Args:  cobra.RangeArgs(1, 2),
			RunE:  runFull,
		},
		quarter,
		&cobra.Command{
			Use:   "monitor <port>",
			Short: "Decode incoming MTC until interrupted",
			Args:  cobra.ExactArgs(1),
			RunE:  runMonitor,
		},
		osc,
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rate() (timecode.Rate, error) {
	return timecode.ParseRate(fps)
}

func openSink(name string) (midi.Sink, func(), error) {
	if onSerial {
		s, err := midi.OpenSerial(name, 0)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
	p, err := midi.OpenPort(name)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { p.Close() }, nil
}

func runList(cmd *cobra.Command, args []string) error {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! The MIDI driver is hung.")
	}

	fmt.Println("\n=== Serial Devices ===")
	ports, err := midi.SerialPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("  (none)")
	}
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runFull(cmd *cobra.Command, args []string) error {
	r, err := rate()
	if err != nil {
		return err
	}
	tc := "00:00:00:00"
	if len(args) == 2 {
		tc = args[1]
	}
	if !timecode.Valid(tc) {
		return errors.Errorf("invalid timecode %q", tc)
	}

	sink, closeSink, err := openSink(args[0])
	if err != nil {
		return err
	}
	defer closeSink()

	frame := timecode.FullFrame(timecode.FromSeconds(timecode.Seconds(tc, float64(r)), float64(r)))
	fmt.Printf("Sending % X to %s\n", frame[:], sink.Name())
	return sink.Send(frame[:])
}

func runQuarter(cmd *cobra.Command, args []string) error {
	r, err := rate()
	if err != nil {
		return err
	}
	if !timecode.Valid(from) {
		return errors.Errorf("invalid timecode %q", from)
	}

	sink, closeSink, err := openSink(args[0])
	if err != nil {
		return err
	}
	defer closeSink()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	// one piece per quarter frame; a full cycle spans two frames
	interval := engine.QuarterInterval(float64(r))
	step := interval.Seconds()
	pos := timecode.Seconds(from, float64(r))

	fmt.Printf("Streaming quarter frames from %s at %s fps to %s\n", from, r, sink.Name())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var latch timecode.Timecode
	piece := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
			if piece == 0 {
				latch = timecode.FromSeconds(pos, float64(r))
				fmt.Printf("\r%s", latch)
			}
			msg := timecode.QuarterFrame(latch, r, piece)
			if err := sink.Send(msg[:]); err != nil {
				return err
			}
			piece = (piece + 1) % 8
			pos += step
		}
	}
}

func findInPort(name string) (drivers.In, error) {
	for _, p := range gomidi.GetInPorts() {
		if p.String() == name {
			return p, nil
		}
	}
	return nil, errors.Errorf("input %q not found", name)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	in, err := findInPort(args[0])
	if err != nil {
		return err
	}

	updates := make(chan string, 16)
	var dec timecode.Decoder
	stopListen, err := gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		tc, r, ok := dec.Feed(msg)
		if !ok {
			return
		}
		line := tc.String() + "  full frame"
		if r > 0 {
			line = fmt.Sprintf("%s  %s fps", tc, r)
		}
		select {
		case updates <- line:
		default:
		}
	}, gomidi.UseSysEx(), gomidi.UseTimeCode(), gomidi.HandleError(func(err error) {
		fmt.Fprintf(os.Stderr, "\nlisten error: %v\n", err)
	}))
	if err != nil {
		return errors.Wrapf(err, "listen on %s", args[0])
	}
	defer stopListen()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Monitoring %s, Ctrl+C to stop\n", args[0])
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line := <-updates:
			fmt.Printf("\r%-30s", line)
		}
	}
}

func runOSC(cmd *cobra.Command, args []string) error {
	addr := transport.DefaultOSCAddr
	if len(args) == 1 {
		addr = args[0]
	}
	r, err := rate()
	if err != nil {
		return err
	}
	client, err := transport.NewClient(addr)
	if err != nil {
		return err
	}

	pos := timecode.Seconds(from, float64(r))
	if err := client.SendLocate(pos); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	fmt.Printf("Rolling OSC transport at %s from %.3fs\n", addr, pos)
	const tick = 100 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return client.SendStop()
		case <-ticker.C:
			pos += tick.Seconds()
			if err := client.SendTime(pos); err != nil {
				return err
			}
			fmt.Printf("\r%10.3fs", pos)
		}
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"go-mtcgen/config"
	"go-mtcgen/debug"
	"go-mtcgen/engine"
	"go-mtcgen/midi"
	"go-mtcgen/theme"
	"go-mtcgen/timecode"
	"go-mtcgen/transport"
	"go-mtcgen/tui"
	"go-mtcgen/widgets"
)

// Command-line overrides, applied on top of config file and environment
var flags struct {
	config   string
	osc      string
	fps      string
	format   string
	outs     []string
	serial   string
	project  string
	headless bool
	debug    bool
}

var rootCmd = &cobra.Command{
	Use:   "go-mtcgen",
	Short: "MIDI Timecode generator driven by trigger notes",
	Long: `go-mtcgen sends MIDI Timecode to MIDI ports and serial devices.

Each mapping binds a trigger note to a base timecode. Holding the note
starts the mapping's window; while the transport is inside a window the
generator outputs the mapping's timecode plus the time elapsed since the
window started. Transport time comes from an internal clock or from an
OSC source (/transport/time, /transport/locate, /transport/stop).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	bindFlags(rootCmd)
}

func bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&flags.config, "config", "c", "", "config file (default ~/.config/go-mtcgen/config.json)")
	f.StringVar(&flags.osc, "osc", "", "take transport time from OSC on host:port")
	f.StringVar(&flags.fps, "fps", "", "frame rate: 24, 25, 29.97 or 30")
	f.StringVar(&flags.format, "format", "", "MTC format: full or quarter")
	f.StringArrayVarP(&flags.outs, "out", "o", nil, "MIDI output port, repeatable")
	f.StringVar(&flags.serial, "serial", "", "serial device for DIN MIDI output")
	f.StringVarP(&flags.project, "project", "p", "", "project to load at startup")
	f.BoolVar(&flags.headless, "headless", false, "run without the terminal UI")
	f.BoolVarP(&flags.debug, "debug", "d", false, "write a debug log to ~/.config/go-mtcgen/debug.log")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() (string, error) {
	if flags.config != "" {
		return flags.config, nil
	}
	return config.ConfigPath()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, cmd); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// applyFlags copies explicitly set flags into cfg
func applyFlags(cfg *config.Config, cmd *cobra.Command) error {
	changed := cmd.Flags().Changed
	if changed("fps") {
		r, err := timecode.ParseRate(flags.fps)
		if err != nil {
			return err
		}
		cfg.FrameRate = float64(r)
	}
	if changed("format") {
		f, err := config.ParseFormat(flags.format)
		if err != nil {
			return err
		}
		cfg.MTCFormat = f
	}
	if changed("osc") {
		cfg.Transport.Source = config.SourceOSC
		cfg.Transport.OSCAddr = flags.osc
	}
	if changed("out") {
		cfg.Outputs = flags.outs
	}
	if changed("serial") {
		cfg.Serial.Port = flags.serial
	}
	if changed("project") {
		cfg.LastProject = flags.project
	}
	return nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if flags.debug {
		if err := debug.Enable(); err != nil {
			return errors.Wrap(err, "enable debug log")
		}
		defer debug.Disable()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(
		engine.WithSampleRate(float64(cfg.Audio.SampleRate)),
		engine.WithRefreshRate(cfg.UI.RefreshHz),
	)
	loaded := false
	if cfg.LastProject != "" {
		if err := eng.LoadProject(cfg.LastProject, ""); err != nil {
			fmt.Fprintf(os.Stderr, "warning: project %s: %v\n", cfg.LastProject, err)
		} else {
			loaded = true
		}
	}
	// explicit settings win over the project's saved ones
	if !loaded || cmd.Flags().Changed("fps") {
		eng.SetFrameRate(timecode.Rate(cfg.FrameRate))
	}
	if !loaded || cmd.Flags().Changed("format") {
		eng.SetFormat(engine.ParseFormat(cfg.MTCFormat))
	}

	if cfg.Transport.Source == config.SourceOSC {
		ph := transport.NewOSC(cfg.Transport.OSCAddr)
		eng.SetPlayHead(ph)
		go func() {
			if err := ph.Run(ctx); err != nil {
				debug.Warn("osc", "%v", err)
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}()
	}

	outputs := midi.NewOutputs()
	defer outputs.Close()
	if err := outputs.Select(cfg.Outputs); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	if cfg.Serial.Port != "" {
		s, err := midi.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		outputs.Add(s)
	}
	eng.SetSinks(outputs.Sinks())

	var dm *midi.DeviceManager
	if cfg.Inputs.AutoConnect {
		dm = midi.NewDeviceManager(midi.ManagerOptions{
			Exclude:       cfg.Inputs.Exclude,
			LaunchpadBase: uint8(cfg.Inputs.LaunchpadBaseNote),
			Keyboards:     true,
		})
		go dm.Run(ctx)
		go eng.ListenNotes(ctx, dm.Notes())
	}

	eng.Prepare(float64(cfg.Audio.SampleRate))
	clock := engine.NewBlockClock(eng, cfg.Audio.SampleRate, cfg.Audio.BlockSize)
	go clock.Run(ctx)
	go eng.Run(ctx)

	project := cfg.LastProject
	if flags.headless {
		err = runHeadless(ctx, eng, dm)
	} else {
		project, err = runTUI(ctx, cfg, eng, outputs, dm)
	}

	if serr := saveSession(eng, outputs, project); serr != nil && err == nil {
		err = serr
	}
	return err
}

func runTUI(ctx context.Context, cfg *config.Config, eng *engine.Engine, outputs *midi.Outputs, dm *midi.DeviceManager) (string, error) {
	palette, err := theme.Load(cfg.UI.Palette)
	if err != nil {
		debug.Warn("theme", "%v", err)
		palette = theme.DefaultPalette()
	}

	m := tui.NewModel(eng, outputs, dm, theme.New(palette))
	m.Project = cfg.LastProject
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	final, err := p.Run()
	if fm, ok := final.(tui.Model); ok {
		m = fm
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}
	return m.Project, err
}

func runHeadless(ctx context.Context, eng *engine.Engine, dm *midi.DeviceManager) error {
	fmt.Println("go-mtcgen")
	fmt.Printf("%s fps, %s. Ctrl+C to stop.\n", eng.FrameRate(), eng.Format())

	var events <-chan midi.DeviceEvent
	if dm != nil {
		events = dm.Events()
	}

	last := "-"
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			eng.HandleDeviceEvent(ev)
			if ev.Type == midi.DeviceConnected {
				fmt.Printf("\nconnected %s\n", ev.ID)
			} else {
				fmt.Printf("\ndisconnected %s\n", ev.ID)
			}
		case <-eng.UpdateChan:
			tc := eng.CurrentTimecode()
			if tc == last {
				continue
			}
			last = tc
			if tc == "" {
				tc = widgets.NoTimecode
			}
			fmt.Printf("\r%s", tc)
		}
	}
}

// saveSession stores what the session changed (rate, format, outputs and
// project) in the config file. Environment and flag overrides of other
// settings are not persisted.
func saveSession(eng *engine.Engine, outputs *midi.Outputs, project string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return err
	}

	cfg.FrameRate = float64(eng.FrameRate())
	cfg.MTCFormat = int(eng.Format())
	cfg.Outputs = cfg.Outputs[:0]
	for _, name := range outputs.Names() {
		if !midi.IsSerial(name) {
			cfg.Outputs = append(cfg.Outputs, name)
		}
	}
	cfg.LastProject = project
	return cfg.SaveTo(path)
}

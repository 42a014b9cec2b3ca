package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadFromMissingFile(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestLoadFromPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"frameRate": 25, "audio": {"sampleRate": 44100}, "transport": {"source": "bogus"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.FrameRate != 25 {
		t.Errorf("FrameRate = %v, want 25", cfg.FrameRate)
	}
	if cfg.Audio.SampleRate != 44100 || cfg.Audio.BlockSize != 512 {
		t.Errorf("Audio = %+v, want 44100/512", cfg.Audio)
	}
	if cfg.Transport.Source != SourceInternal {
		t.Errorf("Source = %q, want %q", cfg.Transport.Source, SourceInternal)
	}
}

func TestLoadFromBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{"), 0644)
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Outputs = []string{"IAC Driver Bus 1"}
	cfg.MTCFormat = 1
	cfg.LastProject = "show"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
}

func TestNormalize(t *testing.T) {
	cfg := &Config{FrameRate: -1, MTCFormat: 7}
	cfg.Inputs.LaunchpadBaseNote = 120
	cfg.Normalize()

	def := DefaultConfig()
	if cfg.FrameRate != def.FrameRate {
		t.Errorf("FrameRate = %v", cfg.FrameRate)
	}
	if cfg.MTCFormat != 0 {
		t.Errorf("MTCFormat = %d, want 0", cfg.MTCFormat)
	}
	if cfg.Inputs.LaunchpadBaseNote != 36 {
		t.Errorf("LaunchpadBaseNote = %d, want 36", cfg.Inputs.LaunchpadBaseNote)
	}
	if cfg.UI.RefreshHz != 10 {
		t.Errorf("RefreshHz = %d, want 10", cfg.UI.RefreshHz)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvOutputs, "Port A, Port B,")
	t.Setenv(EnvFrameRate, "29.97")
	t.Setenv(EnvFormat, "quarter")
	t.Setenv(EnvOSC, "0.0.0.0:9100")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if want := []string{"Port A", "Port B"}; !reflect.DeepEqual(cfg.Outputs, want) {
		t.Errorf("Outputs = %v, want %v", cfg.Outputs, want)
	}
	if cfg.FrameRate != 29.97 {
		t.Errorf("FrameRate = %v", cfg.FrameRate)
	}
	if cfg.MTCFormat != 1 {
		t.Errorf("MTCFormat = %d, want 1", cfg.MTCFormat)
	}
	if cfg.Transport.Source != SourceOSC || cfg.Transport.OSCAddr != "0.0.0.0:9100" {
		t.Errorf("Transport = %+v", cfg.Transport)
	}
}

func TestApplyEnvDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MTCGEN_PROJECT=tour\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvProject, "")
	os.Unsetenv(EnvProject)

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.LastProject != "tour" {
		t.Errorf("LastProject = %q, want tour", cfg.LastProject)
	}
}

func TestApplyEnvBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvFrameRate, "fast")
	t.Setenv(EnvFormat, "half")
	t.Setenv(EnvSerial, "/dev/ttyUSB0")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error")
	}
	if cfg.FrameRate != 30 {
		t.Errorf("FrameRate changed to %v", cfg.FrameRate)
	}
	if cfg.Serial.Port != "/dev/ttyUSB0" {
		t.Errorf("valid values should still apply, Serial.Port = %q", cfg.Serial.Port)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]int{"full": 0, "Quarter": 1, "1": 1, " 0 ": 0} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %d, %v, want %d", in, got, err, want)
		}
	}
}

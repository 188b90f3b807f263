package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from "150ms", "2s" or an
// integer number of seconds.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %q", value.Value)
	}

	if value.Tag == "!!int" {
		i, err := strconv.ParseInt(value.Value, 10, 64)
		if err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}

	if value.Value == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration: %q", value.Value)
	}
	*d = Duration(dur)
	return nil
}

// Range is a closed interval a value is drawn uniformly from.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Valid reports whether the range is usable.
func (r Range) Valid() bool { return r.Min <= r.Max && r.Min >= 0 }

// DurationRange is a closed interval of durations.
type DurationRange struct {
	Min Duration `yaml:"min"`
	Max Duration `yaml:"max"`
}

// Valid reports whether the range is usable.
func (r DurationRange) Valid() bool { return r.Min >= 0 && r.Min <= r.Max }

// LogConfig configures the zap logger.
type LogConfig struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json, console
}

// AssetsConfig locates the digit clips.
type AssetsConfig struct {
	Dir         string   `yaml:"dir"`          // directory containing digits/0.wav … digits/9.wav
	LoadTimeout Duration `yaml:"load_timeout"` // upper bound for the startup load
}

// AudioConfig configures the audio graph and the live sink.
type AudioConfig struct {
	SampleRate int      `yaml:"sample_rate"`
	Output     string   `yaml:"output"`      // speaker, "null"
	BufferSize Duration `yaml:"buffer_size"` // speaker buffer length
	Block      Duration `yaml:"block"`       // render quantum for null sink and offline rendering
	TapSize    int      `yaml:"tap_size"`
}

// CaptchaConfig configures token generation and the playback schedule.
type CaptchaConfig struct {
	TokenLength          int           `yaml:"token_length"`
	DigitGap             DurationRange `yaml:"digit_gap"`
	PlaybackRate         Range         `yaml:"playback_rate"`
	Amplitude            float64       `yaml:"amplitude"`
	EndPadding           Duration      `yaml:"end_padding"`
	EndFade              Duration      `yaml:"end_fade"`
	StopFade             Duration      `yaml:"stop_fade"`
	FallbackClipDuration Duration      `yaml:"fallback_clip_duration"`
}

// ScrambleConfig holds the ranges the per-pass effect parameters are drawn
// from.
type ScrambleConfig struct {
	BandPassFrequency   Range    `yaml:"bandpass_frequency"`
	BandPassResonance   Range    `yaml:"bandpass_resonance"`
	HighPassProbability float64  `yaml:"highpass_probability"`
	HighPassFrequency   Range    `yaml:"highpass_frequency"`
	LowPassFrequency    Range    `yaml:"lowpass_frequency"`
	Distortion          Range    `yaml:"distortion"`
	Oversample          string   `yaml:"oversample"`
	Gain                float64  `yaml:"gain"`
	NoiseLevel          Range    `yaml:"noise_level"`
	NoiseRamp           Duration `yaml:"noise_ramp"`
}

// HTTPConfig configures the HTTP host.
type HTTPConfig struct {
	Addr         string   `yaml:"addr"`
	SessionTTL   Duration `yaml:"session_ttl"`
	MaxSessions  int      `yaml:"max_sessions"`
	MaxRender    Duration `yaml:"max_render"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// ConsoleConfig configures the interactive console.
type ConsoleConfig struct {
	Prompt      string `yaml:"prompt"`
	RevealToken bool   `yaml:"reveal_token"` // print the token for development
}

// Config stores the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Assets   AssetsConfig   `yaml:"assets"`
	Audio    AudioConfig    `yaml:"audio"`
	Captcha  CaptchaConfig  `yaml:"captcha"`
	Scramble ScrambleConfig `yaml:"scramble"`
	HTTP     HTTPConfig     `yaml:"http"`
	Console  ConsoleConfig  `yaml:"console"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Assets: AssetsConfig{
			Dir:         "assets",
			LoadTimeout: Duration(10 * time.Second),
		},
		Audio: AudioConfig{
			SampleRate: 44_100,
			Output:     "speaker",
			BufferSize: Duration(100 * time.Millisecond),
			Block:      Duration(10 * time.Millisecond),
			TapSize:    2048,
		},
		Captcha: CaptchaConfig{
			TokenLength:          5,
			DigitGap:             DurationRange{Min: Duration(20 * time.Millisecond), Max: Duration(80 * time.Millisecond)},
			PlaybackRate:         Range{Min: 0.92, Max: 1.06},
			Amplitude:            1,
			EndPadding:           Duration(150 * time.Millisecond),
			EndFade:              Duration(60 * time.Millisecond),
			StopFade:             Duration(30 * time.Millisecond),
			FallbackClipDuration: Duration(time.Second),
		},
		Scramble: ScrambleConfig{
			BandPassFrequency:   Range{Min: 300, Max: 3400},
			BandPassResonance:   Range{Min: 6, Max: 18},
			HighPassProbability: 0.5,
			HighPassFrequency:   Range{Min: 600, Max: 1200},
			LowPassFrequency:    Range{Min: 1200, Max: 3000},
			Distortion:          Range{Min: 0.1, Max: 0.2},
			Oversample:          "2x",
			Gain:                1,
			NoiseLevel:          Range{Min: 0.1, Max: 0.3},
			NoiseRamp:           Duration(20 * time.Millisecond),
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			SessionTTL:   Duration(5 * time.Minute),
			MaxSessions:  1000,
			MaxRender:    Duration(30 * time.Second),
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Console: ConsoleConfig{
			Prompt: "captcha> ",
		},
	}
}

// LoadConfig loads the configuration from the given file path. Values the
// file omits, or sets to something unusable, fall back to Default.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}

	cfg.normalize()

	return &cfg, nil
}

func (c *Config) normalize() {
	def := Default()

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		c.Log.Encoding = def.Log.Encoding
	}

	if c.Assets.Dir == "" {
		c.Assets.Dir = def.Assets.Dir
	}
	if c.Assets.LoadTimeout <= 0 {
		c.Assets.LoadTimeout = def.Assets.LoadTimeout
	}

	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.Output != "speaker" && c.Audio.Output != "null" {
		c.Audio.Output = def.Audio.Output
	}
	if c.Audio.BufferSize <= 0 {
		c.Audio.BufferSize = def.Audio.BufferSize
	}
	if c.Audio.Block <= 0 {
		c.Audio.Block = def.Audio.Block
	}
	if c.Audio.TapSize <= 0 {
		c.Audio.TapSize = def.Audio.TapSize
	}

	cc := &c.Captcha
	if cc.TokenLength <= 0 {
		cc.TokenLength = def.Captcha.TokenLength
	}
	if !cc.DigitGap.Valid() {
		cc.DigitGap = def.Captcha.DigitGap
	}
	if !cc.PlaybackRate.Valid() || cc.PlaybackRate.Min <= 0 {
		cc.PlaybackRate = def.Captcha.PlaybackRate
	}
	if cc.Amplitude <= 0 {
		cc.Amplitude = def.Captcha.Amplitude
	}
	if cc.EndPadding < 0 {
		cc.EndPadding = def.Captcha.EndPadding
	}
	if cc.EndFade < 0 {
		cc.EndFade = def.Captcha.EndFade
	}
	if cc.StopFade < 0 {
		cc.StopFade = def.Captcha.StopFade
	}
	if cc.FallbackClipDuration <= 0 {
		cc.FallbackClipDuration = def.Captcha.FallbackClipDuration
	}

	sc := &c.Scramble
	for _, r := range []struct {
		got *Range
		def Range
	}{
		{&sc.BandPassFrequency, def.Scramble.BandPassFrequency},
		{&sc.BandPassResonance, def.Scramble.BandPassResonance},
		{&sc.HighPassFrequency, def.Scramble.HighPassFrequency},
		{&sc.LowPassFrequency, def.Scramble.LowPassFrequency},
		{&sc.Distortion, def.Scramble.Distortion},
		{&sc.NoiseLevel, def.Scramble.NoiseLevel},
	} {
		if !r.got.Valid() || (*r.got == Range{}) {
			*r.got = r.def
		}
	}
	if sc.BandPassFrequency.Min <= 0 {
		sc.BandPassFrequency = def.Scramble.BandPassFrequency
	}
	if sc.BandPassResonance.Min <= 0 {
		sc.BandPassResonance = def.Scramble.BandPassResonance
	}
	if sc.Distortion.Max > 1 {
		sc.Distortion = def.Scramble.Distortion
	}
	if sc.HighPassProbability < 0 || sc.HighPassProbability > 1 {
		sc.HighPassProbability = def.Scramble.HighPassProbability
	}
	switch sc.Oversample {
	case "none", "2x", "4x":
	default:
		sc.Oversample = def.Scramble.Oversample
	}
	if sc.Gain <= 0 {
		sc.Gain = def.Scramble.Gain
	}
	if sc.NoiseRamp < 0 {
		sc.NoiseRamp = def.Scramble.NoiseRamp
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}
	if c.HTTP.SessionTTL <= 0 {
		c.HTTP.SessionTTL = def.HTTP.SessionTTL
	}
	if c.HTTP.MaxSessions <= 0 {
		c.HTTP.MaxSessions = def.HTTP.MaxSessions
	}
	if c.HTTP.MaxRender <= 0 {
		c.HTTP.MaxRender = def.HTTP.MaxRender
	}
	if c.HTTP.ReadTimeout <= 0 {
		c.HTTP.ReadTimeout = def.HTTP.ReadTimeout
	}
	if c.HTTP.WriteTimeout <= 0 {
		c.HTTP.WriteTimeout = def.HTTP.WriteTimeout
	}

	if c.Console.Prompt == "" {
		c.Console.Prompt = def.Console.Prompt
	}
}

// Package assets loads and serves the ten spoken-digit clips the captcha is
// assembled from.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

// ErrAssetNotFound is returned for a digit outside '0'..'9'.
var ErrAssetNotFound = errors.New("digit asset not found")

// Digits is the alphabet tokens are drawn from, in clip order.
const Digits = "0123456789"

// Path returns the asset path for digit, relative to the asset root.
func Path(digit byte) string {
	return fmt.Sprintf("digits/%c.wav", digit)
}

// Clip is one decoded digit recording. A Clip never changes once returned.
type Clip struct {
	Digit    byte
	Buffer   *beep.Buffer
	Duration time.Duration
	loaded   bool
}

// NewClip wraps an already decoded buffer as a loaded clip.
func NewClip(digit byte, buf *beep.Buffer) *Clip {
	return &Clip{
		Digit:    digit,
		Buffer:   buf,
		Duration: buf.Format().SampleRate.D(buf.Len()),
		loaded:   true,
	}
}

// Loaded reports whether the clip finished decoding.
func (c *Clip) Loaded() bool { return c.loaded }

// Bank holds the digit clips. Clips are loaded once; a failed digit stays
// unloaded for the lifetime of the Bank.
type Bank struct {
	fsys   fs.FS
	rate   beep.SampleRate
	logger *zap.Logger

	mu    sync.RWMutex
	clips [len(Digits)]*Clip

	loadOnce sync.Once
	done     chan struct{}
	loadErr  error
}

// NewBank creates a bank reading digits/N.wav from fsys. Clips are resampled
// to rate on load.
func NewBank(fsys fs.FS, rate beep.SampleRate, logger *zap.Logger) *Bank {
	b := &Bank{
		fsys:   fsys,
		rate:   rate,
		logger: logger,
		done:   make(chan struct{}),
	}
	for i := range Digits {
		b.clips[i] = &Clip{Digit: Digits[i]}
	}
	return b
}

// Load decodes all ten clips concurrently. Only the first call does any
// work; later calls wait for it and return the same result. Failures are
// joined into one error; successfully decoded digits are kept regardless.
func (b *Bank) Load(ctx context.Context) error {
	b.loadOnce.Do(func() {
		defer close(b.done)
		b.loadErr = b.load(ctx)
	})

	select {
	case <-b.done:
		return b.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bank) load(ctx context.Context) error {
	start := time.Now()
	errs := make([]error, len(Digits))

	var g errgroup.Group
	for i := range Digits {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}

			clip, err := b.decode(Digits[i])
			if err != nil {
				errs[i] = fmt.Errorf("load %s: %w", Path(Digits[i]), err)
				return nil
			}

			b.mu.Lock()
			b.clips[i] = clip
			b.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		b.logger.Warn("Missing digit audio assets",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)))
		return err
	}

	b.logger.Info("Digit audio assets loaded",
		zap.Int("clips", len(Digits)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (b *Bank) decode(digit byte) (*Clip, error) {
	data, err := fs.ReadFile(b.fsys, Path(digit))
	if err != nil {
		return nil, err
	}

	streamer, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != b.rate {
		src = beep.Resample(4, format.SampleRate, b.rate, streamer)
	}

	buf := beep.NewBuffer(audio.Format(b.rate))
	buf.Append(src)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if buf.Len() == 0 {
		return nil, errors.New("clip is empty")
	}

	return NewClip(digit, buf), nil
}

// Wait blocks until Load has finished or ctx is done.
func (b *Bank) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AreAllLoaded reports whether every digit clip decoded successfully.
func (b *Bank) AreAllLoaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, c := range b.clips {
		if !c.loaded {
			return false
		}
	}
	return true
}

// Clip returns the clip for digit. Before loading completes, or when the
// digit failed to load, the returned clip reports Loaded() == false.
func (b *Bank) Clip(digit byte) (*Clip, error) {
	if digit < '0' || digit > '9' {
		return nil, fmt.Errorf("%w: %q", ErrAssetNotFound, digit)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.clips[digit-'0'], nil
}

// SampleRate returns the rate clips are stored at.
func (b *Bank) SampleRate() beep.SampleRate { return b.rate }

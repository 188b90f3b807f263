// Package output drives the process-wide audio graph: either the system
// speaker pulls it, or a null sink pulls it at real-time pace so playback
// advances with no device attached.
package output

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/pkg/audio"
)

// Sink names accepted in audio.output.
const (
	SinkSpeaker = "speaker"
	SinkNull    = "null"
)

// ErrUnknownSink is returned for an unsupported audio.output value.
var ErrUnknownSink = errors.New("unknown audio output")

// Sink pulls a graph until stopped.
type Sink interface {
	Name() string
	Start() error
	Stop() error
}

// NewSink creates the sink named by output.
func NewSink(output string, graph *audio.Graph, buffer, block time.Duration, logger *zap.Logger) (Sink, error) {
	switch output {
	case SinkSpeaker, "":
		return &speakerSink{graph: graph, buffer: buffer, logger: logger}, nil
	case SinkNull:
		return &nullSink{graph: graph, block: block, logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, output)
	}
}

type speakerSink struct {
	graph  *audio.Graph
	buffer time.Duration
	logger *zap.Logger
}

func (s *speakerSink) Name() string { return SinkSpeaker }

func (s *speakerSink) Start() error {
	rate := s.graph.SampleRate()
	if err := speaker.Init(rate, rate.N(s.buffer)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	speaker.Play(s.graph)

	s.logger.Info("Speaker output started",
		zap.Int("sample_rate", int(rate)),
		zap.Duration("buffer", s.buffer))
	return nil
}

func (s *speakerSink) Stop() error {
	speaker.Clear()
	speaker.Close()
	s.logger.Info("Speaker output stopped")
	return nil
}

// nullSink discards the graph output, one block per tick.
type nullSink struct {
	graph  *audio.Graph
	block  time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *nullSink) Name() string { return SinkNull }

func (s *nullSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}

	block := s.block
	if block <= 0 {
		block = audio.DefaultBlock
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, block, s.done)

	s.logger.Info("Null output started", zap.Duration("block", block))
	return nil
}

func (s *nullSink) run(ctx context.Context, block time.Duration, done chan struct{}) {
	defer close(done)

	frames := make([][2]float64, max(s.graph.SampleRate().N(block), 1))
	ticker := time.NewTicker(block)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.graph.Stream(frames)
		}
	}
}

func (s *nullSink) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	s.logger.Info("Null output stopped")
	return nil
}

var _ beep.Streamer = (*audio.Graph)(nil)

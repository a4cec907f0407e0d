// Package scan implements the client-side scan attempt: a cooperative
// loop that polls camera frames at a fixed rate, decodes them, and posts
// the first decoded payload to the backend for resolution.
package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
)

// State is the phase of one scan attempt.
type State int

const (
	StateIdle State = iota
	StateDecoding
	StateResolving
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDecoding:
		return "decoding"
	case StateResolving:
		return "resolving"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// defaultFrameInterval polls at roughly 5 frames per second.
const defaultFrameInterval = 200 * time.Millisecond

// FrameSource produces frames from an acquired camera.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Camera is the exclusive capture resource. Acquire fails while a
// previous source has not been closed.
type Camera interface {
	Acquire(ctx context.Context) (FrameSource, error)
}

// Resolver posts decoded text to the backend.
type Resolver interface {
	Resolve(ctx context.Context, decodedText, action string) (Result, error)
}

// Result mirrors the server's scan response.
type Result struct {
	QRID           string
	Status         string
	DestinationURL string
}

// Session drives one scan attempt through
// Idle -> Decoding -> Resolving -> Completed | Failed.
// Completed and Failed are terminal; Reset starts a fresh attempt.
type Session struct {
	camera   Camera
	decoder  Decoder
	resolver Resolver
	action   string
	interval time.Duration

	mu     sync.Mutex
	state  State
	result Result
	err    error
}

func NewSession(camera Camera, decoder Decoder, resolver Resolver, action string) *Session {
	return &Session{
		camera:   camera,
		decoder:  decoder,
		resolver: resolver,
		action:   action,
		interval: defaultFrameInterval,
	}
}

// SetFrameInterval overrides the polling rate. Useful in tests.
func (s *Session) SetFrameInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// State returns the current phase of the attempt.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the outcome of a terminal attempt.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

// Reset returns a terminal session to Idle so the user can scan again.
// The new attempt reacquires the camera; nothing of the failed attempt
// is resumed.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCompleted && s.state != StateFailed {
		return fmt.Errorf("cannot reset while %s", s.state)
	}
	s.state = StateIdle
	s.result = Result{}
	s.err = nil
	return nil
}

// Run performs one attempt. The camera is acquired on entry and released
// on every exit path. Frames that decode to nothing loop silently back
// to Idle; the first decoded payload is resolved exactly once.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("attempt already %s", s.state)
	}
	s.mu.Unlock()

	source, err := s.camera.Acquire(ctx)
	if err != nil {
		return Result{}, s.fail(fmt.Errorf("acquire camera: %w", err))
	}
	defer source.Close()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, s.fail(ctx.Err())
		case <-ticker.C:
		}

		s.setState(StateDecoding)
		frame, err := source.Next(ctx)
		if err != nil {
			return Result{}, s.fail(fmt.Errorf("read frame: %w", err))
		}

		text, err := s.decoder.Decode(frame)
		if errors.Is(err, ErrNoCode) {
			s.setState(StateIdle)
			continue
		}
		if err != nil {
			return Result{}, s.fail(err)
		}

		s.setState(StateResolving)
		result, err := s.resolver.Resolve(ctx, text, s.action)
		if err != nil {
			return Result{}, s.fail(err)
		}

		s.mu.Lock()
		s.state = StateCompleted
		s.result = result
		s.mu.Unlock()
		return result, nil
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()
	return err
}

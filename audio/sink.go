package audio

import (
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Sink consumes PCM frames. The real sink hands them to aplay; the null
// sink discards them at realtime pace for headless runs.
type Sink interface {
	Write(p []byte) (int, error)
	Close() error
}

const (
	sinkAplay = "aplay"
	sinkNull  = "null"
)

func newSink(kind string) (Sink, error) {
	switch kind {
	case sinkNull:
		return &nullSink{}, nil
	default:
		return newAplaySink()
	}
}

type aplaySink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newAplaySink() (*aplaySink, error) {
	cmd := exec.Command("aplay",
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", "44100",
		"-c", "2",
		"-")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening aplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting aplay: %w", err)
	}
	return &aplaySink{cmd: cmd, stdin: stdin}, nil
}

func (s *aplaySink) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *aplaySink) Close() error {
	s.stdin.Close()
	return s.cmd.Wait()
}

// nullSink sleeps one frame per write so playback still advances at the
// pace a real device would impose.
type nullSink struct{}

func (s *nullSink) Write(p []byte) (int, error) {
	time.Sleep(frameDuration)
	return len(p), nil
}

func (s *nullSink) Close() error {
	return nil
}

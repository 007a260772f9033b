package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

// PCM shape everything downstream assumes: 16-bit little-endian stereo.
const (
	sampleRate     = 44100
	channels       = 2
	bytesPerSample = 2
	bytesPerSecond = sampleRate * channels * bytesPerSample
	frameDuration  = 20 * time.Millisecond
	frameBytes     = bytesPerSecond / 50 // one 20ms frame
)

// timeupdate roughly twice a second; per-frame would flood the engine.
const timeUpdateEveryFrames = 25

type ElementOptions struct {
	Sink        string        // "aplay" or "null"
	LoadTimeout time.Duration // how long ffmpeg may take to decode a source
}

// FFmpegElement decodes a source with ffmpeg into a PCM buffer and feeds it
// to the configured sink one 20ms frame at a time. Decoding the whole track
// up front costs memory but makes the duration exact and seeking trivial,
// and it is far less fragile than racing a live pipe.
type FFmpegElement struct {
	events  chan ElementEvent
	timeout time.Duration
	sink    string
	logger  *log.Entry

	mutex       sync.Mutex
	reader      *bytes.Reader
	size        int64
	volume      float64
	muted       bool
	playing     bool // frames should advance
	alive       bool // the play loop should keep running
	loopRunning bool
	generation  int
	loadCmd     *exec.Cmd
	closed      bool

	eventsMutex  sync.Mutex
	eventsClosed bool
}

var _ Element = (*FFmpegElement)(nil)

func NewElement(opts ElementOptions) *FFmpegElement {
	if opts.Sink == "" {
		opts.Sink = sinkAplay
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &FFmpegElement{
		events:  make(chan ElementEvent, 100),
		timeout: opts.LoadTimeout,
		sink:    opts.Sink,
		volume:  1.0,
		logger: log.WithFields(log.Fields{
			"module": "audio",
		}),
	}
}

func (e *FFmpegElement) Events() <-chan ElementEvent {
	return e.events
}

// Load stops whatever is in flight and decodes the new source in the
// background. A later Load supersedes an earlier one; stale results are
// dropped via the generation counter.
func (e *FFmpegElement) Load(location string) {
	e.mutex.Lock()
	if e.closed {
		e.mutex.Unlock()
		return
	}
	e.generation++
	gen := e.generation
	e.reader = nil
	e.size = 0
	e.playing = false
	e.alive = false
	if e.loadCmd != nil && e.loadCmd.Process != nil {
		e.loadCmd.Process.Kill()
		e.loadCmd = nil
	}
	e.mutex.Unlock()

	e.emit(ElementEvent{Type: ElementLoadStart})
	go e.load(gen, location)
}

func (e *FFmpegElement) load(gen int, location string) {
	ffmpeg := exec.Command("ffmpeg",
		"-i", location,
		"-f", "s16le",
		"-ar", "44100",
		"-ac", "2",
		"-af", "aresample=44100",
		"-loglevel", "error",
		"pipe:1")

	e.mutex.Lock()
	if gen != e.generation || e.closed {
		e.mutex.Unlock()
		return
	}
	e.loadCmd = ffmpeg
	e.mutex.Unlock()

	start := time.Now()
	done := make(chan struct {
		output []byte
		err    error
	}, 1)

	go func() {
		output, err := ffmpeg.Output()
		done <- struct {
			output []byte
			err    error
		}{output, err}
	}()

	select {
	case result := <-done:
		e.finishLoad(gen, location, result.output, result.err, time.Since(start))
	case <-time.After(e.timeout):
		ffmpeg.Process.Kill()
		e.mutex.Lock()
		stale := gen != e.generation || e.closed
		e.loadCmd = nil
		e.mutex.Unlock()
		if stale {
			return
		}
		err := fmt.Errorf("ffmpeg timed out after %s decoding source", e.timeout)
		e.logger.Errorf("%v (%s)", err, location)
		e.emit(ElementEvent{Type: ElementError, Err: err})
	}
}

func (e *FFmpegElement) finishLoad(gen int, location string, pcm []byte, err error, elapsed time.Duration) {
	if err == nil && len(pcm) == 0 {
		err = errors.New("ffmpeg produced no audio data")
	}

	e.mutex.Lock()
	if gen != e.generation || e.closed {
		e.mutex.Unlock()
		return
	}
	e.loadCmd = nil
	if err != nil {
		e.mutex.Unlock()
		e.logger.Errorf("error decoding %s: %v", location, err)
		sentry.CaptureException(err)
		e.emit(ElementEvent{Type: ElementError, Err: fmt.Errorf("decoding source: %w", err)})
		return
	}

	e.reader = bytes.NewReader(pcm)
	e.size = int64(len(pcm))
	duration := float64(len(pcm)) / float64(bytesPerSecond)
	startLoop := e.playing && e.alive && !e.loopRunning
	if startLoop {
		e.loopRunning = true
	}
	e.mutex.Unlock()

	e.logger.Debugf("decoded %.2f MB in %v (%.1fs of audio)", float64(len(pcm))/(1024*1024), elapsed, duration)

	e.emit(ElementEvent{Type: ElementDurationChange, Duration: duration})
	e.emit(ElementEvent{Type: ElementLoadedData})
	e.emit(ElementEvent{Type: ElementProgress, Buffered: duration})

	if startLoop {
		go e.playLoop(gen)
	}
}

// Play starts or resumes playback. When the source is still decoding the
// loop starts as soon as data lands. The error return mirrors a rejected
// play call: the output device is checked up front.
func (e *FFmpegElement) Play() error {
	if e.sink != sinkNull {
		if _, err := exec.LookPath("aplay"); err != nil {
			return fmt.Errorf("audio output unavailable: %w", err)
		}
	}

	e.mutex.Lock()
	if e.closed {
		e.mutex.Unlock()
		return errors.New("element is closed")
	}
	e.playing = true
	e.alive = true
	if e.reader != nil && !e.loopRunning {
		e.loopRunning = true
		go e.playLoop(e.generation)
	}
	e.mutex.Unlock()

	e.emit(ElementEvent{Type: ElementPlay})
	return nil
}

// Pause stops advancing frames but keeps the loop and the device alive so
// resume is gapless.
func (e *FFmpegElement) Pause() {
	e.mutex.Lock()
	e.playing = false
	e.mutex.Unlock()
	e.emit(ElementEvent{Type: ElementPause})
}

// Stop halts the loop, releases the device and rewinds to the start.
func (e *FFmpegElement) Stop() {
	e.mutex.Lock()
	if e.reader == nil && !e.loopRunning {
		e.mutex.Unlock()
		return
	}
	e.playing = false
	e.alive = false
	if e.reader != nil {
		e.reader.Seek(0, io.SeekStart)
	}
	e.mutex.Unlock()

	e.emit(ElementEvent{Type: ElementPause})
	e.emit(ElementEvent{Type: ElementTimeUpdate, Time: 0})
}

func (e *FFmpegElement) Seek(seconds float64) {
	e.mutex.Lock()
	if e.reader == nil {
		e.mutex.Unlock()
		return
	}
	offset := int64(seconds * float64(bytesPerSecond))
	offset -= offset % (channels * bytesPerSample)
	if offset < 0 {
		offset = 0
	}
	if offset > e.size {
		offset = e.size
	}
	e.reader.Seek(offset, io.SeekStart)
	position := e.positionLocked()
	e.mutex.Unlock()

	e.emit(ElementEvent{Type: ElementTimeUpdate, Time: position})
}

func (e *FFmpegElement) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	if volume > 1 {
		volume = 1
	}
	e.mutex.Lock()
	e.volume = volume
	muted := e.muted
	e.mutex.Unlock()

	e.emit(ElementEvent{Type: ElementVolumeChange, Volume: volume, Muted: muted})
}

func (e *FFmpegElement) SetMuted(muted bool) {
	e.mutex.Lock()
	e.muted = muted
	volume := e.volume
	e.mutex.Unlock()

	e.emit(ElementEvent{Type: ElementVolumeChange, Volume: volume, Muted: muted})
}

// Close tears the element down: the loop exits, any in-flight decode is
// killed and the events channel closes once nothing can emit anymore.
func (e *FFmpegElement) Close() {
	e.mutex.Lock()
	e.closed = true
	e.playing = false
	e.alive = false
	e.reader = nil
	if e.loadCmd != nil && e.loadCmd.Process != nil {
		e.loadCmd.Process.Kill()
		e.loadCmd = nil
	}
	e.mutex.Unlock()

	e.eventsMutex.Lock()
	if !e.eventsClosed {
		e.eventsClosed = true
		close(e.events)
	}
	e.eventsMutex.Unlock()
}

// playLoop feeds the sink one frame per iteration. All control flags are
// re-read under the mutex every pass, so transport calls take effect within
// a frame.
func (e *FFmpegElement) playLoop(gen int) {
	sink, err := newSink(e.sink)
	if err != nil {
		e.mutex.Lock()
		e.loopRunning = false
		e.mutex.Unlock()
		e.logger.Errorf("opening audio sink: %v", err)
		sentry.CaptureException(err)
		e.emit(ElementEvent{Type: ElementError, Err: err})
		return
	}
	defer sink.Close()

	frame := make([]byte, frameBytes)
	silence := make([]byte, frameBytes)
	frames := 0

	for {
		e.mutex.Lock()
		if e.closed || gen != e.generation || !e.alive || e.reader == nil {
			e.loopRunning = false
			e.mutex.Unlock()
			return
		}
		if !e.playing {
			e.mutex.Unlock()
			// Keep the device fed so resume is gapless.
			sink.Write(silence)
			time.Sleep(frameDuration)
			continue
		}

		// io.ReadFull so a frame is never partial; see scaleFrame.
		_, readErr := io.ReadFull(e.reader, frame)
		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			e.reader.Seek(0, io.SeekStart)
			e.playing = false
			e.alive = false
			e.loopRunning = false
			e.mutex.Unlock()
			e.logger.Trace("reached end of audio buffer")
			e.emit(ElementEvent{Type: ElementEnded})
			return
		}
		position := e.positionLocked()
		volume := e.volume
		if e.muted {
			volume = 0
		}
		e.mutex.Unlock()

		if volume != 1.0 {
			scaleFrame(frame, volume)
		}
		if _, err := sink.Write(frame); err != nil {
			e.mutex.Lock()
			e.playing = false
			e.alive = false
			e.loopRunning = false
			e.mutex.Unlock()
			e.logger.Errorf("writing to audio sink: %v", err)
			sentry.CaptureException(err)
			e.emit(ElementEvent{Type: ElementError, Err: fmt.Errorf("audio sink: %w", err)})
			return
		}

		frames++
		if frames%timeUpdateEveryFrames == 0 {
			e.emit(ElementEvent{Type: ElementTimeUpdate, Time: position})
		}
	}
}

// positionLocked reports the playback position in seconds. Callers must
// hold the mutex.
func (e *FFmpegElement) positionLocked() float64 {
	if e.reader == nil {
		return 0
	}
	consumed := e.size - int64(e.reader.Len())
	return float64(consumed) / float64(bytesPerSecond)
}

func (e *FFmpegElement) emit(event ElementEvent) {
	e.eventsMutex.Lock()
	defer e.eventsMutex.Unlock()
	if e.eventsClosed {
		return
	}
	select {
	case e.events <- event:
	default:
		msg := "element events channel is full"
		sentry.CaptureMessage(msg)
		e.logger.Warn(msg)
	}
}

// scaleFrame multiplies 16-bit little-endian samples in place, clamping at
// the int16 range.
func scaleFrame(frame []byte, volume float64) {
	for i := 0; i+1 < len(frame); i += 2 {
		sample := float64(int16(binary.LittleEndian.Uint16(frame[i:]))) * volume
		if sample > 32767 {
			sample = 32767
		} else if sample < -32768 {
			sample = -32768
		}
		binary.LittleEndian.PutUint16(frame[i:], uint16(int16(sample)))
	}
}

package camera

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os/exec"

	"github.com/charmbracelet/log"
)

// DefaultCaptureCommand grabs the first V4L2 camera as an MJPEG stream.
var DefaultCaptureCommand = []string{
	"ffmpeg", "-loglevel", "error",
	"-f", "v4l2", "-i", "/dev/video0",
	"-vf", "fps=5",
	"-f", "mjpeg", "-q:v", "5", "-",
}

// maxJPEGFrame bounds a single JPEG frame read from the capture stream.
const maxJPEGFrame = 16 * 1024 * 1024

// CommandSource runs a capture command that writes concatenated JPEG images
// (an MJPEG stream) to stdout and emits each one as a frame.
type CommandSource struct {
	Argv     []string
	Rotation int
	Log      *log.Logger
}

// Start launches the capture command. A missing binary or a failure to
// start it is reported as a binding error.
func (s *CommandSource) Start(ctx context.Context) (<-chan *Frame, error) {
	argv := s.Argv
	if len(argv) == 0 {
		argv = DefaultCaptureCommand
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("capture command: %w", err)
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}

	out := make(chan *Frame, 1)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 256*1024), maxJPEGFrame)
		scanner.Split(SplitJPEG)

		for scanner.Scan() {
			img, err := jpeg.Decode(bytes.NewReader(scanner.Bytes()))
			if err != nil {
				s.logf("Dropping undecodable frame", "err", err)
				continue
			}
			select {
			case out <- NewFrame(img, s.Rotation, nil):
			case <-ctx.Done():
				_ = cmd.Wait()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logf("Capture stream failed", "err", err)
		}
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			s.logf("Capture command exited", "err", err)
		}
	}()
	return out, nil
}

func (s *CommandSource) logf(msg string, keyvals ...interface{}) {
	if s.Log != nil {
		s.Log.Warn(msg, keyvals...)
	}
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// SplitJPEG is a bufio.SplitFunc that yields whole JPEG images from an
// MJPEG byte stream. Bytes before a start-of-image marker are skipped.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF in case it begins the next marker.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		if start > 0 {
			return start, nil, nil
		}
		return 0, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

package media

import "context"

// AudioFormat describes signed 16-bit little-endian PCM.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

type AudioSource interface {
	Open(ctx context.Context) (AudioStream, error)
}

// AudioStream yields PCM chunks until it is closed. Read returns io.EOF
// once closed and drained.
type AudioStream interface {
	Format() AudioFormat
	Read() ([]byte, error)
	Close() error
}

type Facing string

const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

type VideoSource interface {
	Open(ctx context.Context, facing Facing) (VideoStream, error)
}

// VideoStream returns JPEG frames.
type VideoStream interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// Transcriber turns the audio of a recording into text as it arrives.
type Transcriber interface {
	Feed(chunk []byte)
	Transcript() string
	Close() error
}

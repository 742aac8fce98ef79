package media

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const wavHeaderSize = 44

// EncodeWAV wraps PCM chunks in a RIFF/WAVE container.
func EncodeWAV(format AudioFormat, chunks [][]byte) ([]byte, error) {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return nil, fmt.Errorf("invalid audio format %d Hz x %d", format.SampleRate, format.Channels)
	}

	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	blockAlign := format.Channels * 2
	if size%blockAlign != 0 {
		return nil, fmt.Errorf("pcm data of %d bytes is not a whole number of %d-byte frames", size, blockAlign)
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+size))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+size))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(format.Channels))
	binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(format.SampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(size))
	for _, c := range chunks {
		buf.Write(c)
	}

	return buf.Bytes(), nil
}

package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// Decoder turns an encoded byte stream into interleaved signed 16-bit
// little-endian PCM, reporting the sample rate and channel count the
// sink needs to convert byte offsets into durations. Tracks always
// decode from audio-cache bytes, never directly from an HTTP body.
type Decoder interface {
	SampleRate() int
	Channels() int
}

// NewDecoder dispatches to a format-specific decoder by the lowercased
// format hint (container/codec name as reported by the catalog's
// stream suffix or content type).
func NewDecoder(format string, r io.Reader) (Decoder, io.Reader, error) {
	switch strings.ToLower(format) {
	case "mp3", "mpeg":
		d, err := mp3.NewDecoder(r)
		if err != nil {
			return nil, nil, fmt.Errorf("mp3 decode: %w", err)
		}
		return &mp3Decoder{d}, d, nil
	case "flac":
		stream, err := flac.New(r)
		if err != nil {
			return nil, nil, fmt.Errorf("flac decode: %w", err)
		}
		d := &flacDecoder{stream: stream}
		return d, d, nil
	case "ogg", "oga", "vorbis":
		d, err := oggvorbis.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("ogg decode: %w", err)
		}
		ov := &oggDecoder{reader: d}
		return ov, ov, nil
	case "wav", "wave":
		return newWAVDecoder(r)
	default:
		return nil, nil, fmt.Errorf("unsupported audio format: %s", format)
	}
}

type mp3Decoder struct{ d *mp3.Decoder }

func (m *mp3Decoder) SampleRate() int { return m.d.SampleRate() }
func (m *mp3Decoder) Channels() int   { return 2 }

// flacDecoder decodes FLAC frames and re-interleaves them as 16-bit
// PCM, one frame's worth of samples per Read call.
type flacDecoder struct {
	stream     *flac.Stream
	sampleRate int
	channels   int
	pending    []byte
}

func (f *flacDecoder) SampleRate() int { return int(f.stream.Info.SampleRate) }
func (f *flacDecoder) Channels() int   { return int(f.stream.Info.NChannels) }

func (f *flacDecoder) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		frame, err := f.stream.ParseNext()
		if err != nil {
			return 0, err
		}
		f.pending = interleaveFLAC(frame.Subframes)
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func interleaveFLAC(subframes []*frame.Subframe) []byte {
	if len(subframes) == 0 {
		return nil
	}
	n := len(subframes[0].Samples)
	buf := make([]byte, 0, n*len(subframes)*2)
	for i := 0; i < n; i++ {
		for _, sf := range subframes {
			var sample int32
			if i < len(sf.Samples) {
				sample = sf.Samples[i]
			}
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], uint16(int16(sample)))
			buf = append(buf, b[:]...)
		}
	}
	return buf
}

// oggDecoder converts oggvorbis's float32 samples to 16-bit PCM.
type oggDecoder struct {
	reader *oggvorbis.Reader
}

func (o *oggDecoder) SampleRate() int { return int(o.reader.SampleRate()) }
func (o *oggDecoder) Channels() int   { return o.reader.Channels() }

func (o *oggDecoder) Read(p []byte) (int, error) {
	samples := make([]float32, len(p)/2)
	read, err := o.reader.Read(samples)
	if read == 0 {
		return 0, err
	}
	for i := 0; i < read; i++ {
		s := samples[i]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(p[i*2:], uint16(int16(s*32767)))
	}
	return read * 2, nil
}

type wavDecoder struct {
	sampleRate int
	channels   int
}

func (w *wavDecoder) SampleRate() int { return w.sampleRate }
func (w *wavDecoder) Channels() int   { return w.channels }

func newWAVDecoder(r io.Reader) (Decoder, io.Reader, error) {
	var header struct {
		RIFF          [4]byte
		FileSize      uint32
		WAVE          [4]byte
		FmtChunk      [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, nil, fmt.Errorf("wav header: %w", err)
	}
	if string(header.RIFF[:]) != "RIFF" || string(header.WAVE[:]) != "WAVE" {
		return nil, nil, fmt.Errorf("not a wav stream")
	}
	if header.FmtSize > 16 {
		if _, err := io.CopyN(io.Discard, r, int64(header.FmtSize-16)); err != nil {
			return nil, nil, fmt.Errorf("skipping wav fmt extension: %w", err)
		}
	}
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			return nil, nil, fmt.Errorf("wav chunk header: %w", err)
		}
		if string(chunk.ID[:]) == "data" {
			d := &wavDecoder{sampleRate: int(header.SampleRate), channels: int(header.Channels)}
			return d, io.LimitReader(r, int64(chunk.Size)), nil
		}
		if _, err := io.CopyN(io.Discard, r, int64(chunk.Size)); err != nil {
			return nil, nil, fmt.Errorf("skipping wav chunk: %w", err)
		}
	}
}

// Package audio holds the WAV container and the cancellable player that
// turns synthesized speech files into device output.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	wavHeaderSize    = 44
	wavFmtChunkSize  = 16
	wavFormatPCM     = 1
	wavBitsPerByte   = 8
	wavRIFFOverhead  = 36
	maxSkippedChunks = 16
)

// ErrNotWAV is returned when the input is not a PCM WAV stream.
var ErrNotWAV = errors.New("audio: not a PCM WAV file")

// Format describes PCM audio.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// PCM16 returns a 16-bit format.
func PCM16(sampleRate, channels int) Format {
	return Format{SampleRate: sampleRate, Channels: channels, BitsPerSample: 16}
}

// ByteRate is bytes per second.
func (f Format) ByteRate() int {
	return f.SampleRate * f.Channels * f.BitsPerSample / wavBitsPerByte
}

// BlockAlign is bytes per frame.
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / wavBitsPerByte
}

func header(f Format, dataSize int) []byte {
	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(wavRIFFOverhead+dataSize))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], wavFmtChunkSize)
	binary.LittleEndian.PutUint16(h[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(h[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(h[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(h[34:36], uint16(f.BitsPerSample))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataSize))
	return h
}

// EncodeWAV wraps PCM data in a WAV container.
func EncodeWAV(pcm []byte, f Format) []byte {
	return append(header(f, len(pcm)), pcm...)
}

// WAVWriter streams PCM into a WAV file whose size is unknown up front.
// The header is patched on Close.
type WAVWriter struct {
	w      io.WriteSeeker
	format Format
	n      int
	closed bool
}

// NewWAVWriter writes a placeholder header to w.
func NewWAVWriter(w io.WriteSeeker, f Format) (*WAVWriter, error) {
	if _, err := w.Write(header(f, 0)); err != nil {
		return nil, fmt.Errorf("audio: write wav header: %w", err)
	}
	return &WAVWriter{w: w, format: f}, nil
}

func (ww *WAVWriter) Write(p []byte) (int, error) {
	n, err := ww.w.Write(p)
	ww.n += n
	return n, err
}

// Len returns the number of PCM bytes written.
func (ww *WAVWriter) Len() int {
	return ww.n
}

// Close rewrites the header with the final sizes. It does not close w.
func (ww *WAVWriter) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true

	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("audio: seek wav header: %w", err)
	}
	if _, err := ww.w.Write(header(ww.format, ww.n)); err != nil {
		return fmt.Errorf("audio: patch wav header: %w", err)
	}
	_, err := ww.w.Seek(0, io.SeekEnd)
	return err
}

// ReadWAV parses a PCM WAV stream and returns its format and samples.
// Chunks other than fmt and data are skipped.
func ReadWAV(r io.Reader) (Format, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var f Format
	haveFmt := false

	for i := 0; i < maxSkippedChunks; i++ {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return Format{}, nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
		}
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			if size < wavFmtChunkSize {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
			}
			if binary.LittleEndian.Uint16(body[0:2]) != wavFormatPCM {
				return Format{}, nil, fmt.Errorf("%w: compressed audio", ErrNotWAV)
			}
			f.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true

		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			data, err := io.ReadAll(io.LimitReader(r, size))
			if err != nil {
				return Format{}, nil, fmt.Errorf("audio: read wav data: %w", err)
			}
			return f, data, nil

		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return Format{}, nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
			}
		}
	}
	return Format{}, nil, fmt.Errorf("%w: too many chunks", ErrNotWAV)
}

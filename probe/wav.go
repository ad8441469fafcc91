package probe

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// WriteWAV writes interleaved float32 samples in [-1, 1] as a 16-bit PCM
// RIFF/WAVE file.
func WriteWAV(w io.Writer, samples []float32, rate, channels int) error {
	if rate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid wav format: rate=%d channels=%d", rate, channels)
	}
	dataLen := uint32(len(samples) * 2)
	blockAlign := uint16(channels * 2)

	bw := bufio.NewWriter(w)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		36 + dataLen,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(channels),
		uint32(rate),
		uint32(rate) * uint32(blockAlign),
		blockAlign,
		uint16(16),
		[4]byte{'d', 'a', 't', 'a'},
		dataLen,
	}
	for _, field := range header {
		if err := binary.Write(bw, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("write wav header: %w", err)
		}
	}

	var buf [2]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint16(buf[:], uint16(floatToS16(s)))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("write wav data: %w", err)
		}
	}
	return bw.Flush()
}

// WriteWAVFile creates path and writes samples to it.
func WriteWAVFile(path string, samples []float32, rate, channels int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteWAV(f, samples, rate, channels)
}

func floatToS16(s float32) int16 {
	v := math.Round(float64(s) * math.MaxInt16)
	return int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, v)))
}

func s16ToFloat(v int16) float32 {
	return float32(v) / math.MaxInt16
}

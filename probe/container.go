package probe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/pion/webrtc/v3/pkg/media/oggreader"
	"github.com/sirupsen/logrus"
)

// opusRate is the fixed granule clock of Ogg Opus streams.
const opusRate = 48000

// ContainerInfo is what a header-only probe learns about a file.
type ContainerInfo struct {
	Duration float64
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
}

// errNoHeaderProbe marks extensions with no in-process header parser.
var errNoHeaderProbe = errors.New("no header probe for container")

// ProbeContainer reads container headers without decoding. MP4 and
// QuickTime files are parsed with mp4ff; Ogg Opus files report their
// duration from the last page's granule position.
func ProbeContainer(path string) (ContainerInfo, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".m4a", ".mov", ".3gp":
		return probeMP4(path)
	case ".opus", ".ogg", ".oga":
		return probeOgg(path)
	default:
		return ContainerInfo{}, errNoHeaderProbe
	}
}

func probeMP4(path string) (ContainerInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContainerInfo{}, err
	}
	defer f.Close()

	parsed, err := mp4.DecodeFile(f, mp4.WithDecodeMode(mp4.DecModeLazyMdat))
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("parse mp4 %s: %w", path, err)
	}
	moov := parsed.Moov
	if moov == nil {
		return ContainerInfo{}, fmt.Errorf("parse mp4 %s: no moov box", path)
	}

	var info ContainerInfo
	if moov.Mvhd != nil && moov.Mvhd.Timescale > 0 {
		info.Duration = float64(moov.Mvhd.Duration) / float64(moov.Mvhd.Timescale)
	}
	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		switch trak.Mdia.Hdlr.HandlerType {
		case "vide":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			if trak.Tkhd != nil {
				// tkhd dimensions are 16.16 fixed point.
				info.Width = int(uint32(trak.Tkhd.Width) >> 16)
				info.Height = int(uint32(trak.Tkhd.Height) >> 16)
			}
			if info.Duration <= 0 && trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
				info.Duration = float64(trak.Mdia.Mdhd.Duration) / float64(trak.Mdia.Mdhd.Timescale)
			}
		case "soun":
			info.HasAudio = true
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "probeMP4",
		"path":     path,
		"duration": info.Duration,
		"width":    info.Width,
		"height":   info.Height,
	}).Debug("Parsed mp4 header")
	return info, nil
}

func probeOgg(path string) (ContainerInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContainerInfo{}, err
	}
	defer f.Close()

	reader, header, err := oggreader.NewWith(f)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("parse ogg %s: %w", path, err)
	}

	var last uint64
	for {
		_, page, err := reader.ParseNextPage()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return ContainerInfo{}, fmt.Errorf("read ogg page %s: %w", path, err)
		}
		// Pages that finish no packet carry granule -1.
		if page.GranulePosition != ^uint64(0) {
			last = page.GranulePosition
		}
	}

	info := ContainerInfo{HasAudio: true}
	if samples := int64(last) - int64(header.PreSkip); samples > 0 {
		info.Duration = float64(samples) / opusRate
	}
	return info, nil
}

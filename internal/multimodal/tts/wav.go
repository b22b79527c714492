package tts

import (
	"bytes"
	"encoding/binary"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	wavHeaderSize = 44

	DefaultPCMSampleRate = 24000
	DefaultPCMChannels   = 1
	DefaultPCMBitDepth   = 16
)

// PCMFormat describes headerless little-endian PCM samples.
type PCMFormat struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

func (f PCMFormat) withDefaults() PCMFormat {
	if f.SampleRate <= 0 {
		f.SampleRate = DefaultPCMSampleRate
	}
	if f.Channels <= 0 {
		f.Channels = DefaultPCMChannels
	}
	if f.BitsPerSample <= 0 {
		f.BitsPerSample = DefaultPCMBitDepth
	}
	return f
}

// WrapPCM prepends a canonical 44-byte RIFF/WAVE header to raw PCM samples.
func WrapPCM(pcm []byte, format PCMFormat) []byte {
	f := format.withDefaults()
	blockAlign := f.Channels * f.BitsPerSample / 8
	byteRate := f.SampleRate * blockAlign

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// WAVDuration reads the playback length from a canonical WAV header.
// It reports false for anything it cannot interpret.
func WAVDuration(data []byte) (time.Duration, bool) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, false
	}
	byteRate := binary.LittleEndian.Uint32(data[28:32])
	if byteRate == 0 {
		return 0, false
	}

	// Walk chunks after the RIFF header to find "data".
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		if id == "data" {
			if avail := len(data) - off - 8; size > avail {
				size = avail
			}
			return time.Duration(float64(size) / float64(byteRate) * float64(time.Second)), true
		}
		off += 8 + size + size%2
	}
	return 0, false
}

// NormalizedAudio is audio ready to be written to disk under a stable extension.
type NormalizedAudio struct {
	Data        []byte
	ContentType string
	Extension   string
	// Wrapped is true when the input was raw PCM and a WAV header was added.
	Wrapped bool
}

var containerExtensions = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/wav":       ".wav",
	"audio/wave":      ".wav",
	"audio/x-wav":     ".wav",
	"audio/vnd.wave":  ".wav",
	"audio/ogg":       ".ogg",
	"application/ogg": ".ogg",
	"audio/opus":      ".opus",
	"audio/webm":      ".webm",
	"audio/flac":      ".flac",
	"audio/x-flac":    ".flac",
	"audio/aac":       ".aac",
	"audio/mp4":       ".m4a",
	"audio/aiff":      ".aiff",
	"audio/basic":     ".au",
}

// NormalizeAudio picks a file extension for synthesized audio. A recognised
// mime type is trusted; otherwise the bytes are sniffed; anything still
// unidentified is treated as raw PCM and wrapped in a WAV header, with the
// sample rate and channel count taken from mime parameters when present.
func NormalizeAudio(data []byte, contentType string) NormalizedAudio {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}

	if ext, ok := containerExtensions[mediaType]; ok {
		return NormalizedAudio{Data: data, ContentType: mediaType, Extension: ext}
	}
	if !isRawPCM(mediaType) {
		if sniffed, ext, ok := sniffContainer(data); ok {
			return NormalizedAudio{Data: data, ContentType: sniffed, Extension: ext}
		}
	}

	format := PCMFormat{
		SampleRate:    paramInt(params, "rate"),
		Channels:      paramInt(params, "channels"),
		BitsPerSample: pcmBitDepth(mediaType),
	}
	return NormalizedAudio{
		Data:        WrapPCM(data, format),
		ContentType: "audio/wav",
		Extension:   ".wav",
		Wrapped:     true,
	}
}

func isRawPCM(mediaType string) bool {
	switch mediaType {
	case "audio/l16", "audio/l8", "audio/l24", "audio/pcm", "audio/raw", "audio/x-raw":
		return true
	}
	return false
}

func pcmBitDepth(mediaType string) int {
	switch mediaType {
	case "audio/l8":
		return 8
	case "audio/l24":
		return 24
	}
	return DefaultPCMBitDepth
}

func sniffContainer(data []byte) (string, string, bool) {
	// MPEG audio without an ID3 tag is not recognised by DetectContentType.
	if isMPEGFrame(data) {
		return "audio/mpeg", ".mp3", true
	}
	if len(data) >= 4 && string(data[0:4]) == "fLaC" {
		return "audio/flac", ".flac", true
	}
	sniffed := http.DetectContentType(data)
	if mt, _, err := mime.ParseMediaType(sniffed); err == nil {
		sniffed = mt
	}
	if ext, ok := containerExtensions[sniffed]; ok {
		return sniffed, ext, true
	}
	return "", "", false
}

var (
	mpeg1Bitrates = [3][16]int{
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	}
	mpeg2Bitrates = [3][16]int{
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	}
	mpegSampleRates = map[byte][3]int{
		3: {44100, 48000, 32000}, // MPEG-1
		2: {22050, 24000, 16000}, // MPEG-2
		0: {11025, 12000, 8000},  // MPEG-2.5
	}
)

// mpegFrameLength decodes a 4-byte MPEG audio frame header and returns the
// frame size in bytes. Reserved version, layer, bitrate and sample rate
// values are rejected.
func mpegFrameLength(h []byte) (int, bool) {
	if len(h) < 4 || h[0] != 0xFF || h[1]&0xE0 != 0xE0 {
		return 0, false
	}
	version := (h[1] >> 3) & 0x03
	layerBits := (h[1] >> 1) & 0x03
	bitrateIdx := h[2] >> 4
	rateIdx := (h[2] >> 2) & 0x03
	rates, ok := mpegSampleRates[version]
	if !ok || layerBits == 0 || bitrateIdx == 0 || bitrateIdx == 0x0F || rateIdx == 3 {
		return 0, false
	}

	layer := 4 - int(layerBits) // 1, 2 or 3
	table := mpeg2Bitrates
	if version == 3 {
		table = mpeg1Bitrates
	}
	bitrate := table[layer-1][bitrateIdx] * 1000
	sampleRate := rates[rateIdx]
	padding := int(h[2]>>1) & 0x01

	switch {
	case layer == 1:
		return (12*bitrate/sampleRate + padding) * 4, true
	case layer == 3 && version != 3:
		return 72*bitrate/sampleRate + padding, true
	default:
		return 144*bitrate/sampleRate + padding, true
	}
}

// isMPEGFrame requires a valid frame header at the start and, when the data
// extends past the first frame, a second frame sync right after it.
func isMPEGFrame(data []byte) bool {
	n, ok := mpegFrameLength(data)
	if !ok {
		return false
	}
	if len(data) >= n+2 {
		return data[n] == 0xFF && data[n+1]&0xE0 == 0xE0
	}
	return true
}

func paramInt(params map[string]string, key string) int {
	v, ok := params[key]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func pcmDuration(n int, format PCMFormat) time.Duration {
	f := format.withDefaults()
	byteRate := f.SampleRate * f.Channels * f.BitsPerSample / 8
	if byteRate == 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(byteRate) * float64(time.Second))
}

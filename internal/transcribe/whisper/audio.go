package whisper

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
	"github.com/zeozeozeo/gomplerate"
)

const (
	targetSampleRate = 16000 // whisper.cpp expects 16kHz mono
	maxOpusFrame     = 5760  // 120ms at 48kHz
)

// decodeSamples converts any media file into 16 kHz mono float32 samples.
// Lecture videos (mp4 and friends) need ffmpeg to strip the audio track;
// ogg/opus voice notes can be decoded in pure Go when ffmpeg is absent.
func decodeSamples(path string) ([]float32, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ffmpegAvailable() {
		return decodeWithFFmpeg(path)
	}
	if ext == ".ogg" || ext == ".opus" || ext == ".oga" {
		return decodeOggOpus(path)
	}
	return nil, fmt.Errorf("unsupported media format %s (install ffmpeg)", ext)
}

func ffmpegAvailable() bool {
	_, err := exec.LookPath("ffmpeg")
	return err == nil
}

// decodeWithFFmpeg shells out to ffmpeg for a raw 16-bit PCM render of
// the audio track.
func decodeWithFFmpeg(inputPath string) ([]float32, error) {
	tmp, err := os.CreateTemp("", "lectura-pcm-*.raw")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.Command("ffmpeg",
		"-i", inputPath,
		"-ar", fmt.Sprintf("%d", targetSampleRate),
		"-ac", "1",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-y",
		tmpPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, firstLine(out))
	}

	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return int16ToFloat32(samples), nil
}

// decodeOggOpus decodes an ogg/opus file in pure Go. The opus decoder can
// panic on malformed packets, so the whole decode runs under recover.
func decodeOggOpus(path string) (samples []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			samples = nil
			err = fmt.Errorf("opus decoder panic: %v", r)
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	ogg, header, err := oggreader.NewWith(file)
	if err != nil {
		return nil, fmt.Errorf("parse ogg container: %w", err)
	}
	sampleRate := int(header.SampleRate)
	channels := int(header.Channels)

	decoder := opus.NewDecoder()
	outBuf := make([]byte, maxOpusFrame*channels*2)

	var pcm []int16
	for {
		segments, _, err := ogg.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse ogg page: %w", err)
		}
		for _, segment := range segments {
			if len(segment) == 0 {
				continue
			}
			_, isStereo, err := decoder.Decode(segment, outBuf)
			if err != nil {
				continue
			}
			decoded := trimDecoded(outBuf)
			if isStereo {
				decoded = downmixMono(decoded, 2)
			}
			pcm = append(pcm, decoded...)
		}
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio samples decoded from %s", path)
	}

	if sampleRate != targetSampleRate {
		pcm = resample(pcm, sampleRate, targetSampleRate)
	}
	return int16ToFloat32(pcm), nil
}

// trimDecoded reads 16-bit LE samples out of the decode buffer, stopping
// at the trailing all-zero region the decoder leaves unused.
func trimDecoded(buf []byte) []int16 {
	out := make([]int16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(buf[i : i+2]))
		if sample == 0 && i > 0 {
			rest := buf[i:]
			allZero := true
			for j := 0; j+1 < len(rest); j += 2 {
				if binary.LittleEndian.Uint16(rest[j:j+2]) != 0 {
					allZero = false
					break
				}
			}
			if allZero {
				break
			}
		}
		out = append(out, sample)
	}
	return out
}

func downmixMono(samples []int16, channels int) []int16 {
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}

func resample(samples []int16, fromRate, toRate int) []int16 {
	resampler, err := gomplerate.NewResampler(1, fromRate, toRate)
	if err != nil {
		return samples
	}
	return resampler.ResampleInt16(samples)
}

func int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		s = s[:idx]
	}
	return s
}

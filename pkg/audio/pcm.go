// Package audio provides the PCM plumbing shared by the capture pipeline:
// byte/sample conversions, fixed-size windowing for VAD inference, and WAV
// encoding for transcription uploads.
//
// All session audio is 16 kHz mono 16-bit little-endian PCM.
package audio

import "encoding/binary"

const (
	// SampleRate is the capture rate for all session audio, in Hz.
	SampleRate = 16000

	// WindowSamples is the number of samples the Silero VAD model consumes
	// per inference at 16 kHz.
	WindowSamples = 512

	// WindowBytes is one window as little-endian int16 bytes.
	WindowBytes = WindowSamples * 2

	// WindowSeconds is the wall-clock span of one window.
	WindowSeconds = float64(WindowSamples) / float64(SampleRate)
)

// BytesToInt16 decodes 16-bit signed little-endian PCM into samples.
// Any trailing odd byte is silently ignored.
func BytesToInt16(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}

// Int16ToBytes encodes samples as 16-bit signed little-endian PCM.
func Int16ToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:i*2+2], uint16(s))
	}
	return data
}

// Int16ToFloat32 normalizes 16-bit samples to the range [-1.0, 1.0) for
// model input.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// DurationMs returns the wall-clock duration of a sample count in
// milliseconds at the session sample rate.
func DurationMs(sampleCount int) float64 {
	return float64(sampleCount) * 1000.0 / float64(SampleRate)
}

package audio

import (
	"bytes"
	"encoding/binary"
)

// PCMToWAV wraps raw 16-bit little-endian PCM in a minimal WAV container.
// Hosted transcription endpoints reject bare PCM, so committed segments are
// wrapped before upload.
func PCMToWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16

	var buf bytes.Buffer

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	// fmt sub-chunk
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))

	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, byteRate)

	blockAlign := uint16(channels * bitsPerSample / 8)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	// data sub-chunk
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// SamplesToWAV encodes int16 samples as a mono WAV file at the session
// sample rate.
func SamplesToWAV(samples []int16) []byte {
	return PCMToWAV(Int16ToBytes(samples), SampleRate, 1)
}

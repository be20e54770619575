package audio

import "math"

// Tone generates a sine wave at the session sample rate. Amplitude is in
// raw int16 units; 10000 is loud enough for the VAD to score as speech.
func Tone(frequency float64, numSamples int, amplitude float64) []int16 {
	samples := make([]int16, numSamples)
	for i := range numSamples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*float64(i)/float64(SampleRate)))
	}
	return samples
}

// Silence generates all-zero samples.
func Silence(numSamples int) []int16 {
	return make([]int16, numSamples)
}

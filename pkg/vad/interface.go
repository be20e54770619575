package vad

// DetectorInterface is the inference surface the sequencer drives. It
// allows mock implementations in tests and alternative model backends.
type DetectorInterface interface {
	// Infer runs inference on one window of audio samples and returns the
	// speech probability. samples should be normalized float32 values in
	// the range [-1, 1]. Returns a probability in [0, 1] where higher
	// values indicate speech.
	Infer(samples []float32) (float32, error)

	// Reset clears any internal state carried between windows. Call when
	// starting a new audio stream.
	Reset() error

	// Destroy releases all resources held by the detector. The detector
	// must not be used after calling Destroy.
	Destroy() error
}

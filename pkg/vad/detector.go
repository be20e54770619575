// Package vad provides voice activity detection for session audio using
// the Silero VAD ONNX model, plus the utterance sequencer that turns
// per-window speech probabilities into start and commit events.
//
// Usage:
//
//	// Initialize the ONNX runtime (call once at startup)
//	if err := vad.InitRuntime(""); err != nil {
//	    log.Fatal(err)
//	}
//	defer vad.DestroyRuntime()
//
//	detector, err := vad.NewDetector(vad.DetectorConfig{
//	    ModelPath:  "models/silero_vad.onnx",
//	    SampleRate: 16000,
//	})
package vad

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// stateLen is the flattened LSTM state (2 x 1 x 128) the model threads
	// through consecutive inferences.
	stateLen = 2 * 1 * 128
	// contextLen is the number of samples from the previous window the
	// model expects prepended to the current one.
	contextLen = 64
)

var (
	runtimeInitialized bool
	runtimeMu          sync.Mutex
)

// InitRuntime initializes the ONNX runtime environment. libraryPath may be
// empty to auto-detect libonnxruntime from ONNXRUNTIME_LIB or common
// install locations. Call once at application startup before creating
// detectors.
func InitRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInitialized {
		return nil
	}

	if libraryPath == "" {
		libraryPath = findONNXRuntimeLibrary()
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	runtimeInitialized = true
	return nil
}

// DestroyRuntime tears down the ONNX runtime environment. Call once at
// application shutdown, after all detectors are destroyed.
func DestroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !runtimeInitialized {
		return nil
	}

	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX runtime: %w", err)
	}

	runtimeInitialized = false
	return nil
}

// findONNXRuntimeLibrary checks the ONNXRUNTIME_LIB environment variable
// and common install locations for the ONNX Runtime shared library.
func findONNXRuntimeLibrary() string {
	paths := []string{
		os.Getenv("ONNXRUNTIME_LIB"),
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/opt/onnxruntime/lib/libonnxruntime.so",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
	}

	if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
		for _, dir := range filepath.SplitList(ldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.so"))
		}
	}
	if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
		for _, dir := range filepath.SplitList(dyldPath) {
			paths = append(paths, filepath.Join(dir, "libonnxruntime.dylib"))
		}
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// DetectorConfig holds configuration for creating a VAD detector.
type DetectorConfig struct {
	// ModelPath is the path to the Silero VAD ONNX model file.
	ModelPath string
	// SampleRate of the input audio. Supported values are 8000 and 16000.
	SampleRate int
}

// IsValid validates the detector configuration.
func (c DetectorConfig) IsValid() error {
	if c.ModelPath == "" {
		return fmt.Errorf("invalid ModelPath: should not be empty")
	}

	if c.SampleRate != 8000 && c.SampleRate != 16000 {
		return fmt.Errorf("invalid SampleRate: valid values are 8000 and 16000")
	}

	return nil
}

// Detector scores audio windows for speech using the Silero VAD model.
// A Detector is stateful across calls and not safe for concurrent use;
// each audio stream needs its own instance.
type Detector struct {
	session *ort.DynamicAdvancedSession

	cfg DetectorConfig

	// RNN state (h, c) carried between inferences.
	state [stateLen]float32
	// Tail of the previous window, prepended for continuity.
	ctx [contextLen]float32
	// currSample counts samples processed so far. The first inference
	// (currSample == 0) runs without prepended context.
	currSample int

	inputNames  []string
	outputNames []string
}

// NewDetector creates a VAD detector with the given configuration,
// initializing the ONNX runtime first if needed.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runtimeMu.Lock()
	initialized := runtimeInitialized
	runtimeMu.Unlock()
	if !initialized {
		if err := InitRuntime(""); err != nil {
			return nil, fmt.Errorf("ONNX runtime not initialized: %w", err)
		}
	}

	sd := &Detector{
		cfg:         cfg,
		inputNames:  []string{"input", "state", "sr"},
		outputNames: []string{"output", "stateN"},
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("failed to set graph optimization level: %w", err)
	}

	// Single-threaded inference; windows are tiny and sessions are per-stream.
	if err := options.SetIntraOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		return nil, fmt.Errorf("failed to set inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		sd.inputNames,
		sd.outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	sd.session = session
	return sd, nil
}

// Infer runs inference on one window of audio samples and returns the
// speech probability. samples should be normalized float32 values in the
// range [-1, 1]. Returns a probability in [0, 1] where higher values
// indicate speech.
func (sd *Detector) Infer(samples []float32) (float32, error) {
	if sd == nil {
		return 0, fmt.Errorf("invalid nil detector")
	}

	// Prepend the previous window's tail, except on the first call.
	pcm := samples
	if sd.currSample > 0 {
		pcm = append(sd.ctx[:], samples...)
	}
	if len(samples) >= contextLen {
		copy(sd.ctx[:], samples[len(samples)-contextLen:])
	}
	sd.currSample += len(samples)

	inputShape := ort.NewShape(1, int64(len(pcm)))
	inputTensor, err := ort.NewTensor(inputShape, pcm)
	if err != nil {
		return 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateShape := ort.NewShape(2, 1, 128)
	stateTensor, err := ort.NewTensor(stateShape, sd.state[:])
	if err != nil {
		return 0, fmt.Errorf("failed to create state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srShape := ort.NewShape(1)
	srData := []int64{int64(sd.cfg.SampleRate)}
	srTensor, err := ort.NewTensor(srShape, srData)
	if err != nil {
		return 0, fmt.Errorf("failed to create sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputShape := ort.NewShape(1, 1)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		return 0, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	stateNShape := ort.NewShape(2, 1, 128)
	stateNTensor, err := ort.NewEmptyTensor[float32](stateNShape)
	if err != nil {
		return 0, fmt.Errorf("failed to create stateN tensor: %w", err)
	}
	defer stateNTensor.Destroy()

	inputs := []ort.Value{inputTensor, stateTensor, srTensor}
	outputs := []ort.Value{outputTensor, stateNTensor}

	if err := sd.session.Run(inputs, outputs); err != nil {
		return 0, fmt.Errorf("failed to run inference: %w", err)
	}

	copy(sd.state[:], stateNTensor.GetData())

	outputData := outputTensor.GetData()
	if len(outputData) == 0 {
		return 0, fmt.Errorf("empty output from inference")
	}

	return outputData[0], nil
}

// Reset clears the detector's RNN state and context. Call when starting a
// new audio stream on a reused detector.
func (sd *Detector) Reset() error {
	if sd == nil {
		return fmt.Errorf("invalid nil detector")
	}

	for i := range stateLen {
		sd.state[i] = 0
	}
	for i := range contextLen {
		sd.ctx[i] = 0
	}
	sd.currSample = 0

	return nil
}

// Destroy releases all resources held by the detector. The detector must
// not be used after calling Destroy.
func (sd *Detector) Destroy() error {
	if sd == nil {
		return fmt.Errorf("invalid nil detector")
	}

	if sd.session != nil {
		if err := sd.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy session: %w", err)
		}
		sd.session = nil
	}

	return nil
}

// Ensure Detector implements DetectorInterface at compile time.
var _ DetectorInterface = (*Detector)(nil)

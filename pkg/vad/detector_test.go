package vad

import (
	"os"
	"path/filepath"
	"testing"
)

// getModelPath locates the Silero model for tests that exercise the real
// ONNX session, skipping when it is not installed.
func getModelPath(t *testing.T) string {
	t.Helper()

	paths := []string{
		os.Getenv("VAD_MODEL_PATH"),
		"../../models/silero_vad.onnx",
		"models/silero_vad.onnx",
		"/tmp/silero_vad.onnx",
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		absPath, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			return absPath
		}
	}

	t.Skip("silero_vad.onnx model not found, skipping test")
	return ""
}

func TestDetectorConfigIsValid(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DetectorConfig
		wantErr bool
	}{
		{
			name: "valid config 16kHz",
			cfg: DetectorConfig{
				ModelPath:  "/path/to/model.onnx",
				SampleRate: 16000,
			},
			wantErr: false,
		},
		{
			name: "valid config 8kHz",
			cfg: DetectorConfig{
				ModelPath:  "/path/to/model.onnx",
				SampleRate: 8000,
			},
			wantErr: false,
		},
		{
			name: "empty model path",
			cfg: DetectorConfig{
				ModelPath:  "",
				SampleRate: 16000,
			},
			wantErr: true,
		},
		{
			name: "invalid sample rate",
			cfg: DetectorConfig{
				ModelPath:  "/path/to/model.onnx",
				SampleRate: 44100,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.IsValid()
			if (err != nil) != tt.wantErr {
				t.Errorf("IsValid() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewDetector(t *testing.T) {
	modelPath := getModelPath(t)

	detector, err := NewDetector(DetectorConfig{
		ModelPath:  modelPath,
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	defer detector.Destroy()
}

func TestDetectorInfer_Silence(t *testing.T) {
	modelPath := getModelPath(t)

	detector, err := NewDetector(DetectorConfig{
		ModelPath:  modelPath,
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	defer detector.Destroy()

	silence := make([]float32, 512)
	prob, err := detector.Infer(silence)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	if prob < 0 || prob > 1 {
		t.Errorf("Infer() probability = %v, want in range [0, 1]", prob)
	}
	if prob >= 0.5 {
		t.Errorf("Silence scored %v, expected below speech threshold", prob)
	}

	t.Logf("Silence speech probability: %.4f", prob)
}

func TestDetectorReset(t *testing.T) {
	modelPath := getModelPath(t)

	detector, err := NewDetector(DetectorConfig{
		ModelPath:  modelPath,
		SampleRate: 16000,
	})
	if err != nil {
		t.Fatalf("NewDetector() error = %v", err)
	}
	defer detector.Destroy()

	if _, err := detector.Infer(make([]float32, 512)); err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	if err := detector.Reset(); err != nil {
		t.Errorf("Reset() error = %v", err)
	}
	if detector.currSample != 0 {
		t.Errorf("Expected sample counter cleared, got %d", detector.currSample)
	}
}

func TestDetectorNilSafety(t *testing.T) {
	var detector *Detector

	if _, err := detector.Infer(make([]float32, 512)); err == nil {
		t.Error("Infer() on nil detector should return error")
	}
	if err := detector.Reset(); err == nil {
		t.Error("Reset() on nil detector should return error")
	}
	if err := detector.Destroy(); err == nil {
		t.Error("Destroy() on nil detector should return error")
	}
}

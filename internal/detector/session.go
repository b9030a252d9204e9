// Package detector runs the MolDetect ONNX model: session management,
// image preprocessing, output decoding and a fixed-size session pool.
package detector

import (
	"context"
	"fmt"
	"image"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"moldetect-service/internal/domain"
)

// Predictor runs molecule detection over one decoded image.
type Predictor interface {
	Predict(ctx context.Context, img image.Image) (*domain.Prediction, error)
	Device() string
	Close()
}

// Options describes how sessions are built.
type Options struct {
	ModelPath      string
	Device         string // auto | cpu | cuda
	InputSize      int
	ScoreThreshold float64
	IoUThreshold   float64
}

// Initialize sets up the ONNX runtime environment. libPath may be empty
// to use the system library. Must be called once before NewSession.
func Initialize(libPath string) error {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initialize onnx environment: %w", err)
	}
	return nil
}

// Shutdown tears down the ONNX runtime environment.
func Shutdown() {
	_ = ort.DestroyEnvironment()
}

// Session wraps an ONNX inference session with pre-allocated tensors.
// Run is not reentrant; the pool hands each session to one request at
// a time.
type Session struct {
	opts    Options
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	device  string
	anchors int

	mu      sync.Mutex
	bufPool *sync.Pool
}

// anchorCount is the number of candidate boxes the model emits for a
// square input: one per cell of the 1/8, 1/16 and 1/32 feature maps.
func anchorCount(inputSize int) int {
	s8 := inputSize / 8
	s16 := inputSize / 16
	s32 := inputSize / 32
	return s8*s8 + s16*s16 + s32*s32
}

// NewSession loads the checkpoint and builds an inference session.
func NewSession(opts Options) (*Session, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotAvailable, opts.ModelPath)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	device, err := applyDevice(options, opts.Device)
	if err != nil {
		return nil, err
	}

	anchors := anchorCount(opts.InputSize)
	inputShape := ort.NewShape(1, 3, int64(opts.InputSize), int64(opts.InputSize))
	outputShape := ort.NewShape(1, int64(4+len(domain.Categories)), int64(anchors))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	size := opts.InputSize
	return &Session{
		opts:    opts,
		session: session,
		input:   inputTensor,
		output:  outputTensor,
		device:  device,
		anchors: anchors,
		bufPool: &sync.Pool{
			New: func() interface{} {
				return make([]float32, 3*size*size)
			},
		},
	}, nil
}

// applyDevice configures the execution provider. "auto" tries CUDA and
// falls back to CPU; "cuda" fails hard when the provider is missing.
func applyDevice(options *ort.SessionOptions, device string) (string, error) {
	if device == "cuda" || device == "auto" || device == "" {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err == nil {
			err = options.AppendExecutionProviderCUDA(cudaOpts)
			cudaOpts.Destroy()
		}
		if err == nil {
			return "cuda", nil
		}
		if device == "cuda" {
			return "", fmt.Errorf("cuda execution provider: %w", err)
		}
	}

	if err := options.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		return "", fmt.Errorf("set intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(runtime.NumCPU()); err != nil {
		return "", fmt.Errorf("set inter-op threads: %w", err)
	}
	return "cpu", nil
}

// Device reports the resolved execution provider.
func (s *Session) Device() string { return s.device }

// Predict runs the model against img and decodes the result into
// relative-coordinate detections with coreference groups.
func (s *Session) Predict(ctx context.Context, img image.Image) (*domain.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := s.bufPool.Get().([]float32)
	defer s.bufPool.Put(buf)

	lb := prepareInput(img, s.opts.InputSize, buf)

	s.mu.Lock()
	copy(s.input.GetData(), buf)
	err := s.session.Run()
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("model inference: %w", err)
	}
	raw := make([]float32, len(s.output.GetData()))
	copy(raw, s.output.GetData())
	s.mu.Unlock()

	bounds := img.Bounds()
	dets := decodePredictions(raw, s.anchors, lb, bounds.Dx(), bounds.Dy(), s.opts.ScoreThreshold)
	dets = nonMaxSuppression(dets, s.opts.IoUThreshold)

	return &domain.Prediction{
		Bboxes: dets,
		Corefs: corefGroups(dets),
	}, nil
}

// Close releases the session and its tensors.
func (s *Session) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

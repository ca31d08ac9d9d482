package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-pathsense/pkg/frame"
	"gocv.io/x/gocv"
)

// YOLOConfig holds YOLO backend configuration
type YOLOConfig struct {
	ModelPath   string
	ScoreThresh float32 // pre-NMS class score floor
	NMSThresh   float32
	InputWidth  int
	InputHeight int
	Labels      []string
}

// DefaultYOLOConfig returns defaults for YOLOv8n exported to ONNX
func DefaultYOLOConfig() YOLOConfig {
	return YOLOConfig{
		ModelPath:   "models/yolov8n.onnx",
		ScoreThresh: 0.25,
		NMSThresh:   0.45,
		InputWidth:  640,
		InputHeight: 640,
		Labels:      COCOClasses,
	}
}

// YOLO runs a YOLOv8 ONNX model through the OpenCV DNN module.
type YOLO struct {
	net       gocv.Net
	config    YOLOConfig
	mu        sync.Mutex
	inputSize image.Point
}

// NewYOLO loads the model once. The network is reused for every frame.
func NewYOLO(cfg YOLOConfig) (*YOLO, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = COCOClasses
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLO{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Infer implements Backend.
func (y *YOLO) Infer(f frame.Frame) ([]Candidate, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("yolo: invalid frame %dx%d (%d bytes)", f.Width, f.Height, len(f.Data))
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	img, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("yolo: frame to mat: %w", err)
	}
	defer img.Close()

	blob := gocv.BlobFromImage(img, 1.0/255.0, y.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.net.SetInput(blob, "")
	output := y.net.Forward("")
	defer output.Close()

	return y.parse(output, float32(f.Width), float32(f.Height))
}

// parse reads a [1, 4+classes, anchors] tensor.
func (y *YOLO) parse(output gocv.Mat, imgW, imgH float32) ([]Candidate, error) {
	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, fmt.Errorf("yolo: unexpected output shape %v", dims)
	}
	attrs, anchors := dims[1], dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("yolo: read output: %w", err)
	}

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	sx := imgW / float32(y.config.InputWidth)
	sy := imgH / float32(y.config.InputHeight)

	for i := 0; i < anchors; i++ {
		best := float32(0)
		bestID := 0
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+i]; s > best {
				best = s
				bestID = c - 4
			}
		}
		if best < y.config.ScoreThresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		boxes = append(boxes, image.Rect(
			int((cx-w/2)*sx), int((cy-h/2)*sy),
			int((cx+w/2)*sx), int((cy+h/2)*sy),
		))
		scores = append(scores, best)
		classIDs = append(classIDs, bestID)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, scores, y.config.ScoreThresh, y.config.NMSThresh)

	out := make([]Candidate, 0, len(indices))
	for _, idx := range indices {
		out = append(out, Candidate{
			Label:      y.label(classIDs[idx]),
			Confidence: float64(scores[idx]),
			Box:        boxes[idx].Intersect(image.Rect(0, 0, int(imgW), int(imgH))),
		})
	}
	return out, nil
}

func (y *YOLO) label(id int) string {
	if id >= 0 && id < len(y.config.Labels) {
		return y.config.Labels[id]
	}
	return fmt.Sprintf("object %d", id)
}

// Close releases the network.
func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}

var _ Backend = (*YOLO)(nil)

package api

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temporary file.
const multipartMemory = 32 << 20

// Predictor classifies frames and video files.
type Predictor interface {
	PredictFrame(frame *gocv.Mat) (gesture.FramePrediction, error)
	PredictVideoFile(path string, opts gesture.VideoOptions) (gesture.VideoVerdict, error)
}

// Recorder persists predictions. *store.PredictionRepository satisfies it.
type Recorder interface {
	Create(p *store.Prediction) error
}

// Notifier is told about every successful prediction after it is recorded.
type Notifier interface {
	Notify(p *store.Prediction)
}

// PredictConfig configures a PredictHandler.
type PredictConfig struct {
	Predictor Predictor
	// History records every successful prediction. Optional.
	History Recorder
	// Notifier receives every successful prediction. Optional.
	Notifier Notifier
	// UploadDir receives uploaded videos for the duration of a request.
	UploadDir string
	// Stride is the video sampling stride.
	Stride int
	// MaxUploadBytes caps the request body of a video upload. 0 means no cap.
	MaxUploadBytes int64
	Logger         logrus.FieldLogger
}

// PredictHandler serves the frame and video prediction endpoints.
type PredictHandler struct {
	config   PredictConfig
	validate *validator.Validate
	logger   logrus.FieldLogger
}

// NewPredictHandler creates a new PredictHandler.
func NewPredictHandler(config PredictConfig) *PredictHandler {
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if config.UploadDir == "" {
		config.UploadDir = os.TempDir()
	}
	return &PredictHandler{
		config:   config,
		validate: validator.New(),
		logger:   logger,
	}
}

type framePredictionRequest struct {
	Frame string `json:"frame" validate:"required"`
}

// Frame handles POST /predict-frame.
func (h *PredictHandler) Frame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req framePredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Field 'frame' is required")
		return
	}

	frame, err := capture.DecodeFrame(req.Frame)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Frame prediction failed: %v", err))
		return
	}
	defer frame.Close()

	pred, err := h.config.Predictor.PredictFrame(frame)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Frame prediction failed: %v", err))
		return
	}

	h.record(&store.Prediction{
		Kind:         store.KindFrame,
		Label:        pred.Label,
		Confidence:   pred.Confidence,
		HandDetected: pred.HandDetected,
		Source:       "frame",
	})

	writeJSON(w, http.StatusOK, pred)
}

// Video handles POST /upload-video. The upload is written to UploadDir and
// removed before the handler returns, whatever the outcome.
func (h *PredictHandler) Video(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Uploaded file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Field 'file' is required")
		return
	}
	defer file.Close()

	if !capture.IsAllowedVideo(header.Filename) {
		allowed := append([]string(nil), capture.AllowedVideoExtensions...)
		sort.Strings(allowed)
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported file type. Allowed: %v", allowed))
		return
	}

	path, size, err := h.saveUpload(file, strings.ToLower(filepath.Ext(header.Filename)))
	if path != "" {
		defer h.removeUpload(path)
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to store upload")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Video prediction failed: %v", err))
		return
	}
	if size == 0 {
		writeError(w, http.StatusBadRequest, "Uploaded file is empty")
		return
	}

	verdict, err := h.config.Predictor.PredictVideoFile(path, gesture.VideoOptions{Stride: h.config.Stride})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, gesture.ErrDecode) {
			status = http.StatusBadRequest
		}
		writeError(w, status, fmt.Sprintf("Video prediction failed: %v", err))
		return
	}

	p := &store.Prediction{
		Kind:            store.KindVideo,
		Label:           verdict.Label,
		Confidence:      verdict.Confidence,
		FramesProcessed: verdict.FramesProcessed,
		Source:          filepath.Base(header.Filename),
	}
	if verdict.Votes != nil {
		if votes, err := json.Marshal(verdict.Votes); err == nil {
			p.Votes = votes
		}
	}
	h.record(p)

	writeJSON(w, http.StatusOK, verdict)
}

// saveUpload copies src to a uniquely named file in the upload directory.
func (h *PredictHandler) saveUpload(src io.Reader, ext string) (string, int64, error) {
	if err := os.MkdirAll(h.config.UploadDir, 0755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}

	name := strings.ReplaceAll(uuid.New().String(), "-", "") + ext
	path := filepath.Join(h.config.UploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return path, n, fmt.Errorf("write upload file: %w", err)
	}
	return path, n, nil
}

func (h *PredictHandler) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		h.logger.WithError(err).WithField("path", path).Warn("Failed to remove upload")
	}
}

// record stores p in the history and notifies plugins. Failures are logged
// and never reach the client.
func (h *PredictHandler) record(p *store.Prediction) {
	if h.config.History != nil {
		if err := h.config.History.Create(p); err != nil {
			h.logger.WithError(err).WithField("kind", p.Kind).Warn("Failed to record prediction")
		}
	}
	if h.config.Notifier != nil {
		h.config.Notifier.Notify(p)
	}
}

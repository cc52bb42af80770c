package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Brownie44l1/crack-api/internal/detector"
	"github.com/Brownie44l1/crack-api/internal/logging"
	"github.com/Brownie44l1/crack-api/internal/model"
)

// MaxUploadSize is the default cap on uploaded image bytes.
const MaxUploadSize = 10 << 20

// EngineStatus is the read-only view of the model engine the health
// endpoint reports.
type EngineStatus interface {
	State() model.State
	InputDim() int
}

type Handler struct {
	detector      *detector.Detector
	engine        EngineStatus
	logger        *zap.Logger
	maxUploadSize int64
}

func NewHandler(d *detector.Detector, engine EngineStatus, logger *zap.Logger, maxUploadSize int64) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadSize <= 0 {
		maxUploadSize = MaxUploadSize
	}
	return &Handler{
		detector:      d,
		engine:        engine,
		logger:        logger.Named("http"),
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestID(), enableCORS())

	router.GET("/health", h.Health)
	router.POST("/predict", h.Predict)
	router.POST("/predict/image", h.PredictFromImage)
}

func (h *Handler) Health(c *gin.Context) {
	state := h.engine.State()
	status := "healthy"
	if state != model.StateReady {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"model":     state.String(),
		"input_dim": h.engine.InputDim(),
	})
}

// Predict classifies a precomputed descriptor.
func (h *Handler) Predict(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	res := h.detector.ClassifyDescriptor(c.Request.Context(), req.Features)
	h.render(c, res)
}

// PredictFromImage classifies an image uploaded as multipart field "image".
func (h *Handler) PredictFromImage(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		// Missing field is the "no input" outcome, not a transport error.
		h.render(c, h.detector.Detect(c.Request.Context(), nil))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}

	logging.WithOperation(h.logger, "http.predict_image", logging.RequestIDFromContext(c.Request.Context())).
		Debug("received file", zap.String("filename", header.Filename), zap.Int64("size", header.Size))

	h.render(c, h.detector.DetectBytes(c.Request.Context(), data))
}

func (h *Handler) render(c *gin.Context, res *detector.Result) {
	c.JSON(statusFor(res.Kind), newPredictionResponse(res))
}

func statusFor(kind detector.Kind) int {
	switch kind {
	case detector.KindOK:
		return http.StatusOK
	case detector.KindNoInput, detector.KindInvalidImage:
		return http.StatusBadRequest
	case detector.KindDimensionMismatch:
		return http.StatusUnprocessableEntity
	case detector.KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// requestID tags every request with an ID the detector logs and echoes.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func enableCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moldetect-service/internal/detector"
	"moldetect-service/internal/domain"
	"moldetect-service/internal/service"
	"moldetect-service/internal/store"
	"moldetect-service/internal/visualizer"
)

type fakeSession struct {
	pred *domain.Prediction
	err  error
}

func (f *fakeSession) Predict(ctx context.Context, img image.Image) (*domain.Prediction, error) {
	return f.pred, f.err
}

func (f *fakeSession) Device() string { return "cpu" }
func (f *fakeSession) Close()         {}

type fakePool struct {
	session detector.Predictor
	ready   bool
	stats   detector.Metrics
}

func (f *fakePool) Acquire(ctx context.Context) (detector.Predictor, error) {
	if !f.ready {
		return nil, domain.ErrModelNotAvailable
	}
	return f.session, nil
}

func (f *fakePool) Release(detector.Predictor) {}
func (f *fakePool) Discard(detector.Predictor) {}
func (f *fakePool) Ready() bool                { return f.ready }
func (f *fakePool) Device() string             { return "cpu" }
func (f *fakePool) Stats() detector.Metrics    { return f.stats }

func samplePrediction() *domain.Prediction {
	return &domain.Prediction{
		Bboxes: []domain.Detection{
			{
				Category:   domain.CategoryMolecule,
				CategoryID: 1,
				BBox:       domain.BoundingBox{X1: 0.2, Y1: 0.2, X2: 0.5, Y2: 0.5},
				Score:      0.9,
			},
		},
		Corefs: [][]int{},
	}
}

func setupRouter(t *testing.T, pool *fakePool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	renderer, err := visualizer.New()
	require.NoError(t, err)

	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	detectionSvc := service.NewDetectionService(pool)
	visualizationSvc := service.NewVisualizationService(detectionSvc, renderer, st)

	h := New(detectionSvc, visualizationSvc, pool)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func pngUpload(t *testing.T, fieldContentType string, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var imgBuf bytes.Buffer
	require.NoError(t, png.Encode(&imgBuf, img))

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="mol.png"`)
	header.Set("Content-Type", fieldContentType)
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(imgBuf.Bytes())
	require.NoError(t, err)

	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	return body, w.FormDataContentType()
}

func TestHealthUnhealthyBeforeModelLoads(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: false})

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp["status"])
	assert.Equal(t, false, resp["model_loaded"])
}

func TestHealthHealthy(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	req, _ := http.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, true, resp["model_loaded"])
	assert.Equal(t, "cpu", resp["device"])
}

func TestDetect(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	body, contentType := pngUpload(t, "image/png", nil)
	req, _ := http.NewRequest("POST", "/detect", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	preds := resp["predictions"].(map[string]interface{})
	bboxes := preds["bboxes"].([]interface{})
	require.Len(t, bboxes, 1)
	first := bboxes[0].(map[string]interface{})
	assert.Equal(t, "[Mol]", first["category"])
	assert.Equal(t, float64(1), first["category_id"])

	info := resp["image_info"].(map[string]interface{})
	assert.Equal(t, float64(32), info["width"])
	assert.Equal(t, "mol.png", info["filename"])
}

func TestDetectMissingFile(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	req, _ := http.NewRequest("POST", "/detect", bytes.NewBufferString(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetectRejectsNonImageUpload(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	body, contentType := pngUpload(t, "text/plain", nil)
	req, _ := http.NewRequest("POST", "/detect", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetectModelUnavailable(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: false})

	body, contentType := pngUpload(t, "image/png", nil)
	req, _ := http.NewRequest("POST", "/detect", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestVisualizeRoundTrip(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	body, contentType := pngUpload(t, "image/png", nil)
	req, _ := http.NewRequest("POST", "/visualize", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	imagePath := resp["image_path"].(string)
	require.NotEmpty(t, imagePath)

	// The stored artifact must be retrievable through the API.
	req, _ = http.NewRequest("GET", "/visualize/"+filepath.Base(imagePath), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.NotZero(t, w.Body.Len())
}

func TestVisualizeWithProvidedPredictions(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	predJSON := `{"bboxes":[{"category":"[Mol]","bbox":[0.1,0.1,0.4,0.4],"category_id":1,"score":0.8}],"corefs":[]}`
	body, contentType := pngUpload(t, "image/png", map[string]string{"predictions": predJSON})
	req, _ := http.NewRequest("POST", "/visualize", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestVisualizeWithInvalidPredictions(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	body, contentType := pngUpload(t, "image/png", map[string]string{"predictions": "{broken"})
	req, _ := http.NewRequest("POST", "/visualize", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVisualizationNotFound(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	req, _ := http.NewRequest("GET", "/visualize/nope.png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetVisualizationRejectsTraversal(t *testing.T) {
	r := setupRouter(t, &fakePool{ready: true, session: &fakeSession{pred: samplePrediction()}})

	req, _ := http.NewRequest("GET", "/visualize/..secret.png", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetrics(t *testing.T) {
	pool := &fakePool{ready: true, stats: detector.Metrics{Size: 2, TotalAcquired: 7}}
	r := setupRouter(t, pool)

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var m detector.Metrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, 2, m.Size)
	assert.Equal(t, int64(7), m.TotalAcquired)
}

func TestMetricsNoPool(t *testing.T) {
	gin.SetMode(gin.TestMode)

	detectionSvc := service.NewDetectionService(nil)
	h := New(detectionSvc, nil, nil)
	r := gin.New()
	r.GET("/metrics", h.Metrics)

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package dto

// DetectionResponse is the /detect reply.
type DetectionResponse struct {
	Success     bool               `json:"success"`
	Message     string             `json:"message"`
	Predictions *PredictionPayload `json:"predictions,omitempty"`
	ImageInfo   *ImageInfoPayload  `json:"image_info,omitempty"`
}

// VisualizationResponse is the /visualize reply.
type VisualizationResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ImagePath string `json:"image_path,omitempty"`
}

// HealthResponse is the /health reply.
type HealthResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ModelLoaded bool   `json:"model_loaded"`
	Device      string `json:"device"`
}

// PredictionPayload mirrors the model output wire format: bounding
// boxes with relative [x1,y1,x2,y2] coordinates plus coref index
// groups.
type PredictionPayload struct {
	Bboxes []BBoxPayload `json:"bboxes"`
	Corefs [][]int       `json:"corefs"`
}

type BBoxPayload struct {
	Category   string     `json:"category"`
	BBox       [4]float64 `json:"bbox"`
	CategoryID int        `json:"category_id"`
	Score      float64    `json:"score"`
}

type ImageInfoPayload struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

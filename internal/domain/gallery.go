package domain

import "math"

// GalleryRecord is the persisted, immutable summary of one completed job.
type GalleryRecord struct {
	ID              string         `json:"id"`
	Timestamp       Timestamp      `json:"timestamp"`
	ContentImageURL string         `json:"contentImageUrl"`
	StyleImageURL   string         `json:"styleImageUrl"`
	ResultImageURL  string         `json:"resultImageUrl"`
	BestLoss        float64        `json:"bestLoss"`
	StyleLoss       float64        `json:"styleLoss"`
	ContentLoss     float64        `json:"contentLoss"`
	ProcessingTime  float64        `json:"processingTime"`
	Parameters      TransferParams `json:"parameters"`
}

// ArtifactURLs returns the locators of the three artifacts in content, style,
// result order, skipping empty ones.
func (g GalleryRecord) ArtifactURLs() []string {
	urls := make([]string, 0, 3)
	for _, u := range []string{g.ContentImageURL, g.StyleImageURL, g.ResultImageURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Sanitized returns a copy whose metrics are all JSON-encodable.
func (g GalleryRecord) Sanitized() GalleryRecord {
	g.BestLoss = FiniteLoss(g.BestLoss)
	g.StyleLoss = FiniteLoss(g.StyleLoss)
	g.ContentLoss = FiniteLoss(g.ContentLoss)
	g.ProcessingTime = FiniteLoss(g.ProcessingTime)
	return g
}

// LossCeiling replaces infinite metrics before encoding.
const LossCeiling = 999999999.0

// FiniteLoss clamps infinities to ±LossCeiling and maps NaN to zero.
func FiniteLoss(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1) || v > LossCeiling:
		return LossCeiling
	case math.IsInf(v, -1) || v < -LossCeiling:
		return -LossCeiling
	}
	return v
}

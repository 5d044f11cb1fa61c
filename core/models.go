package core

import (
	"encoding/binary"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier for transient entities such as batches
// and cached summaries.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Record is one customer feedback entry.
// Records are values: once derived and indexed they are never mutated.
type Record struct {
	CustomerID        string  `json:"customer_id"`
	Age               int     `json:"age"`
	Gender            string  `json:"gender"`
	Country           string  `json:"country"`
	Income            float64 `json:"income"`
	ProductQuality    int     `json:"product_quality"`
	ServiceQuality    int     `json:"service_quality"`
	PurchaseFrequency int     `json:"purchase_frequency"`
	FeedbackScore     string  `json:"feedback_score"`
	LoyaltyLevel      string  `json:"loyalty_level"`
	SatisfactionScore float64 `json:"satisfaction_score"`

	// Summary is the text sent to the embedding provider (populated by DeriveSummary).
	Summary string `json:"summary"`
}

// Entry pairs an embedding vector with the record whose summary produced it.
type Entry struct {
	Record Record
	Vector []float32
}

// SearchResult is a single retrieval hit with its similarity score.
type SearchResult struct {
	Record Record
	Score  float32
}

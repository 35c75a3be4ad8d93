// Package moderation is the injection point for an external image classifier.
// The pipeline calls the gate immediately before conversion; classification
// itself lives outside this repository.
package moderation

import (
	"context"

	"ansifier-server/internal/apperr"
)

// Classifier scores the image at path; higher means riskier. Implementations
// are external collaborators supplied at construction time.
type Classifier interface {
	Classify(ctx context.Context, path string) (float64, error)
}

// Gate pairs a classifier with a rejection threshold. A nil gate (or a gate
// with a nil classifier) admits everything.
type Gate struct {
	classifier Classifier
	threshold  float64
}

func NewGate(classifier Classifier, threshold float64) *Gate {
	return &Gate{classifier: classifier, threshold: threshold}
}

// Check rejects with a moderation failure when the score exceeds the
// threshold. Classifier faults are upstream failures: the collaborator is a
// remote service from this system's point of view.
func (g *Gate) Check(ctx context.Context, path string) error {
	if g == nil || g.classifier == nil {
		return nil
	}
	score, err := g.classifier.Classify(ctx, path)
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, err, "moderation check failed")
	}
	if score > g.threshold {
		return apperr.New(apperr.KindModeration, "image rejected by content moderation")
	}
	return nil
}

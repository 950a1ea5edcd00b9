// Package classifier provides the interface to the external scam-likelihood
// model. The online pipeline treats the model as optional: a slow or failed
// classification degrades score quality but never stalls a call.
package classifier

import (
	"context"
	"errors"
)

// Classifier scores a transcript fragment for scam likelihood in [0,1].
type Classifier interface {
	Classify(ctx context.Context, text string) (float64, error)
}

// Disabled is a Classifier that reports no model available. Sessions run on
// lexical and behavioral signals alone.
type Disabled struct{}

// ErrDisabled is returned by the Disabled classifier on every call.
var ErrDisabled = errors.New("classifier disabled")

// Classify always returns ErrDisabled.
func (Disabled) Classify(_ context.Context, _ string) (float64, error) {
	return 0, ErrDisabled
}

package weightstate

import "github.com/kailas-cloud/circare/internal/domain/weights"

// Listener is notified with the committed weights after every change.
type Listener func(weights.Weights)

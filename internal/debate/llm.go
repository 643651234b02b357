package debate

import (
	"context"
	"time"
)

// Model is the interface each debate role calls to get its model-generated
// content, matching the teacher's AdversarialLLMClient shape
// (Complete(ctx, prompt) -> text) with the deadline spec §5 requires at
// every suspension point.
type Model interface {
	Complete(ctx context.Context, prompt string, deadline time.Time) (string, error)
}

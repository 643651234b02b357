package service

import (
	"context"
	"time"

	"github.com/consensusnet/core/internal/modelrouter"
)

// routerModel adapts *modelrouter.Router to debate.Model, always escalating
// straight to the reasoning tier: debate roles need the strongest available
// model, not the router's complexity-driven tier selection.
type routerModel struct {
	router *modelrouter.Router
}

// newRouterModel wraps router for use by the debate engine's three roles.
func newRouterModel(router *modelrouter.Router) *routerModel {
	return &routerModel{router: router}
}

func (m *routerModel) Complete(ctx context.Context, prompt string, deadline time.Time) (string, error) {
	completion, _, err := m.router.Complete(ctx, modelrouter.TierReasoning, prompt, deadline)
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

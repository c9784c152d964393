package main

import (
	"context"

	"github.com/entrhq/booker/pkg/browser"
	"github.com/entrhq/booker/pkg/orchestrator"
	"github.com/entrhq/booker/pkg/profile"
)

// workspace opens one browser session per user.
type workspace struct {
	manager *browser.Manager
}

func (w *workspace) Open(ctx context.Context, p profile.UserProfile) (orchestrator.Lease, error) {
	s, err := w.manager.Open(ctx, p.Alias)
	if err != nil {
		return nil, err
	}
	return s, nil
}

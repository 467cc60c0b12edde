package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/browser/dom"
	"github.com/xkilldash9x/pagepilot/internal/browser/pageworld"
	"github.com/xkilldash9x/pagepilot/internal/browser/session"
	"github.com/xkilldash9x/pagepilot/internal/bus"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/engine"
)

// page is one open browser tab as seen by the commands.
type page struct {
	doc   dom.Document
	realm pageworld.Realm
	nav   bus.Navigator
	close func()
}

// openPage starts or attaches to a browser and opens a tab. Tests replace it
// with an in-memory page.
var openPage = func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*page, error) {
	sess, err := session.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &page{
		doc:   sess.Document(),
		realm: sess.Realm(),
		nav:   sess,
		close: sess.Close,
	}, nil
}

func newEngine(p *page, cfg config.Interface, logger *zap.Logger) *engine.Engine {
	return engine.New(p.doc, p.realm,
		engine.WithConfig(cfg.Engine()),
		engine.WithLogger(logger))
}

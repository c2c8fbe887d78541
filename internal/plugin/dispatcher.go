package plugin

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/store"
)

// Dispatcher forwards recorded predictions to subscribed plugins. Each
// plugin runs in its own goroutine so a slow plugin never delays a response.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	logger   logrus.FieldLogger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher over the manager's plugins.
func NewDispatcher(manager *Manager, executor *Executor, logger logrus.FieldLogger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		manager:  manager,
		executor: executor,
		logger:   logger,
	}
}

// Notify starts every plugin subscribed to p's kind. It does nothing once
// Close has been called.
func (d *Dispatcher) Notify(p *store.Prediction) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	ev := Event(p.Kind)
	subscribers := d.manager.Subscribers(ev, p.Confidence)
	if len(subscribers) == 0 {
		return
	}

	req := RequestFor(p)
	for _, pl := range subscribers {
		d.wg.Add(1)
		go func(pl *Plugin) {
			defer d.wg.Done()
			d.run(pl, req)
		}(pl)
	}
}

func (d *Dispatcher) run(pl *Plugin, req *Request) {
	log := d.logger.WithFields(logrus.Fields{
		"plugin":     pl.Manifest.Name,
		"prediction": req.Prediction,
	})

	resp, err := d.executor.Execute(context.Background(), pl, req)
	if err != nil {
		log.WithError(err).Warn("Plugin run failed")
		return
	}
	if !resp.Success {
		log.WithField("error", resp.Error).Warn("Plugin reported failure")
		return
	}
	log.Debug("Plugin run completed")
}

// Wait blocks until every started plugin run has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting notifications and waits for running plugins.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// RequestFor builds the plugin request for a recorded prediction.
func RequestFor(p *store.Prediction) *Request {
	req := &Request{
		Event:      Event(p.Kind),
		ID:         p.ID,
		Prediction: p.Label,
		Confidence: p.Confidence,
		Source:     p.Source,
	}
	switch p.Kind {
	case store.KindFrame:
		hand := p.HandDetected
		req.HandDetected = &hand
	case store.KindVideo:
		frames := p.FramesProcessed
		req.FramesProcessed = &frames
		if len(p.Votes) > 0 {
			req.VoteBreakdown = p.Votes
		}
	}
	return req
}

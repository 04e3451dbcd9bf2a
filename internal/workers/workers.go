// Package workers manages the client's background workers (scheduled sync,
// clipboard capture) behind one aggregate so the composition root starts
// and stops them in a unified way.
package workers

import "context"

// Worker is one background process. Start must not block; Stop waits for
// in-flight work to finish.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}

// Workers runs a set of workers as a unit.
type Workers struct {
	workers []Worker
}

func New(ws ...Worker) *Workers {
	return &Workers{workers: ws}
}

func (w *Workers) Start(ctx context.Context) {
	for _, worker := range w.workers {
		worker.Start(ctx)
	}
}

// Stop stops workers in reverse start order.
func (w *Workers) Stop() {
	for i := len(w.workers) - 1; i >= 0; i-- {
		w.workers[i].Stop()
	}
}

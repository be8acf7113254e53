package update

import "sync"

// dispatcher delivers one attempt's notifications in order on a single
// goroutine. The queue is unbounded so a slow observer never stalls a
// download. Delivery starts only once the previous attempt's dispatcher
// has finished, so attempts never interleave.
type dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	run    func(func())
	done   chan struct{}
}

func newDispatcher(run func(func()), prev <-chan struct{}) *dispatcher {
	if run == nil {
		run = func(fn func()) { fn() }
	}
	d := &dispatcher{run: run, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop(prev)
	return d
}

func (d *dispatcher) post(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
}

// close queues the final notification; nothing posted afterwards is delivered.
// done is closed once final has run.
func (d *dispatcher) close(final func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue = append(d.queue, func() {
		defer close(d.done)
		final()
	})
	d.closed = true
	d.cond.Signal()
}

func (d *dispatcher) loop(prev <-chan struct{}) {
	if prev != nil {
		<-prev
	}
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		d.run(fn)
	}
}

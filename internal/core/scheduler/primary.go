package scheduler

import (
	"runtime"
	"sync"
)

// primary is a goroutine locked to one OS thread. Tasks that are not thread
// safe, or insist on the primary thread, always run here.
type primary struct {
	jobs chan func()
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func startPrimary() *primary {
	p := &primary{
		jobs: make(chan func()),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *primary) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.quit:
			return
		}
	}
}

// run executes fn on the primary thread and waits for it. It returns
// ErrClosed without running fn once stop has been called. A job the loop
// already accepted always runs to completion.
func (p *primary) run(fn func()) error {
	finished := make(chan struct{})
	job := func() {
		defer close(finished)
		fn()
	}
	select {
	case p.jobs <- job:
	case <-p.quit:
		return ErrClosed
	}
	<-finished
	return nil
}

func (p *primary) stop() {
	p.once.Do(func() {
		close(p.quit)
		<-p.done
	})
}

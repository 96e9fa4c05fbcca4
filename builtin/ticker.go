package builtin

import (
	"sync"
	"time"
)

// pusher delivers a payload to every subscriber on each tick. The ticker runs
// only while at least one subscriber is attached.
type pusher struct {
	mu     sync.Mutex
	period time.Duration
	next   func() any
	subs   map[int]func(any)
	seq    int
	stop   chan struct{}
	closed bool
}

func newPusher(period time.Duration, next func() any) *pusher {
	return &pusher{period: period, next: next, subs: make(map[int]func(any))}
}

func (p *pusher) Subscribe(fn func(data any)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return func() {}
	}
	p.seq++
	key := p.seq
	p.subs[key] = fn
	if p.stop == nil {
		p.stop = make(chan struct{})
		go p.run(p.stop)
	}
	var once sync.Once
	return func() {
		once.Do(func() { p.remove(key) })
	}
}

func (p *pusher) remove(key int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subs, key)
	if len(p.subs) == 0 && p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *pusher) run(stop chan struct{}) {
	t := time.NewTicker(p.period)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			data := p.next()
			p.mu.Lock()
			fns := make([]func(any), 0, len(p.subs))
			for _, fn := range p.subs {
				fns = append(fns, fn)
			}
			p.mu.Unlock()
			for _, fn := range fns {
				fn(data)
			}
		}
	}
}

// Close stops the ticker and drops every subscriber
func (p *pusher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	clear(p.subs)
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return nil
}

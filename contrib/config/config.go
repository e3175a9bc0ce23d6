// Package config scans layered sources into a typed bootstrap value and
// re-scans when a watchable source changes.
package config

import (
	"sync"

	"github.com/zsbai/embytoalist/contrib/log"
)

// Observer is notified after a successful re-scan.
type Observer[T any] func(key string, v *T)

type Config[T any] interface {
	Scan(v *T) error
	Watch(key string, o Observer[T])
	Close() error
}

type config[T any] struct {
	opts *options

	mu        sync.Mutex
	observers map[string][]Observer[T]
	stops     []func()
	bc        *T
}

func New[T any](opts ...Option) Config[T] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return &config[T]{
		opts:      o,
		observers: make(map[string][]Observer[T]),
	}
}

func (c *config[T]) Scan(v *T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.scan(v); err != nil {
		return err
	}

	// first scan arms the source watchers
	if c.bc == nil {
		c.bc = v
		for _, source := range c.opts.sources {
			ws, ok := source.(WatchSource)
			if !ok {
				continue
			}
			stop, err := ws.Watch(c.onChange)
			if err != nil {
				log.Warnf("[config] watch failed: %v", err)
				continue
			}
			c.stops = append(c.stops, stop)
		}
	}
	return nil
}

func (c *config[T]) scan(v *T) error {
	for _, source := range c.opts.sources {
		files, err := source.Load()
		if err != nil {
			return err
		}
		for _, file := range files {
			if file.Value == nil {
				continue
			}
			unmarshal := toUnmarshal(file.Format)
			log.Debugf("[config] load %s format: %s", file.Key, file.Format)
			if err := unmarshal(file.Value, v); err != nil {
				log.Errorf("[config] unmarshal %s: %v", file.Key, err)
			}
		}
	}
	return nil
}

func (c *config[T]) onChange() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bc == nil {
		return
	}
	if err := c.scan(c.bc); err != nil {
		log.Errorf("[config] reload failed: %v", err)
		return
	}
	for key, observers := range c.observers {
		log.Debugf("[config] notify key: %s", key)
		for _, observer := range observers {
			observer(key, c.bc)
		}
	}
}

func (c *config[T]) Watch(key string, o Observer[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers[key] = append(c.observers[key], o)
}

func (c *config[T]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stop := range c.stops {
		stop()
	}
	c.stops = nil
	return nil
}

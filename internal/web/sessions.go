package web

import (
	"sync"
	"time"

	"image-enhancer/common"
	"image-enhancer/internal/editor"
)

// ControllerFactory 为新会话创建控制器
type ControllerFactory func(sessionID string) *editor.Controller

type sessionEntry struct {
	ctrl     *editor.Controller
	lastSeen time.Time
}

// Registry 浏览器会话 ID 到控制器的映射，空闲超时后回收
type Registry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
	idle    time.Duration
	factory ControllerFactory
	now     func() time.Time
}

// NewRegistry 创建会话表；idle <= 0 表示从不回收
func NewRegistry(idle time.Duration, factory ControllerFactory) *Registry {
	return &Registry{
		entries: make(map[string]*sessionEntry),
		idle:    idle,
		factory: factory,
		now:     time.Now,
	}
}

// Get 返回会话对应的控制器，不存在时创建
func (r *Registry) Get(sessionID string) *editor.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sessionID]
	if !ok {
		e = &sessionEntry{ctrl: r.factory(sessionID)}
		r.entries[sessionID] = e
		common.WithSession(sessionID).Debug("Editor session created")
	}
	e.lastSeen = r.now()
	return e.ctrl
}

// Len 当前会话数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep 关闭并移除空闲超时的会话，返回回收数量
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var expired []*editor.Controller
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.ctrl)
			delete(r.entries, id)
			common.WithSession(id).Debug("Editor session expired")
		}
	}
	r.mu.Unlock()

	// Close 会等待后台任务，不能持锁
	for _, ctrl := range expired {
		ctrl.Close()
	}
	return len(expired)
}

// StartSweeper 定期回收空闲会话，返回停止函数
func (r *Registry) StartSweeper(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					common.Infof("Expired %d idle editor sessions", n)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Close 关闭所有会话
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*sessionEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.ctrl.Close()
	}
}

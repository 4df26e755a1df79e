// 配置文件变更监听器实现。
//
// 通过轮询修改时间检测配置文件变化，防抖后重新加载并回调。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 监听器选项 ---

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the file's modification time is checked
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithDebounceDelay sets the delay between the last detected change and the reload
func WithDebounceDelay(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDelay = d
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// --- 监听器实现 ---

// Watcher reloads a configuration file whenever it changes on disk.
// A reload that fails to parse or validate is logged and dropped; the
// previously delivered config stays in effect.
type Watcher struct {
	mu sync.RWMutex

	loader        *Loader
	interval      time.Duration
	debounceDelay time.Duration

	running  bool
	stopChan chan struct{}
	lastMod  time.Time

	callbacks []func(*Config)
	logger    *zap.Logger
}

// NewWatcher creates a watcher that reloads through loader. The loader
// must have a config path.
func NewWatcher(loader *Loader, opts ...WatcherOption) (*Watcher, error) {
	if loader == nil || loader.ConfigPath() == "" {
		return nil, fmt.Errorf("watcher requires a loader with a config path")
	}

	w := &Watcher{
		loader:        loader,
		interval:      time.Second,
		debounceDelay: 100 * time.Millisecond,
		stopChan:      make(chan struct{}),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "config_watcher"))

	if _, err := os.Stat(loader.ConfigPath()); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat path %s: %w", loader.ConfigPath(), err)
	}

	return w, nil
}

// OnReload registers a callback for successfully reloaded configs
func (w *Watcher) OnReload(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start begins polling until ctx is done or Stop is called
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	if info, err := os.Stat(w.loader.ConfigPath()); err == nil {
		w.lastMod = info.ModTime()
	}
	w.mu.Unlock()

	go w.pollLoop(ctx)

	w.logger.Info("config watcher started",
		zap.String("path", w.loader.ConfigPath()),
		zap.Duration("interval", w.interval))
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopChan)
	w.running = false
	w.logger.Info("config watcher stopped")
}

// IsRunning returns whether the watcher is running
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.C:
			if !w.changed() {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounceDelay, w.reload)
		}
	}
}

// changed reports whether the file's modification time moved forward
func (w *Watcher) changed() bool {
	info, err := os.Stat(w.loader.ConfigPath())
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !info.ModTime().After(w.lastMod) {
		return false
	}
	w.lastMod = info.ModTime()
	return true
}

func (w *Watcher) reload() {
	cfg, err := w.loader.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Warn("config reload rejected", zap.Error(err))
		return
	}

	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	w.logger.Info("config reloaded", zap.String("path", w.loader.ConfigPath()))
	for _, cb := range callbacks {
		cb(cfg)
	}
}

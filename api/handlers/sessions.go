package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/config"
	"github.com/BaSui01/flowcanvas/types"
)

// =============================================================================
// 🗂️ 编辑会话
// =============================================================================

// Session 是一个编辑会话。Editor 本身不是并发安全的，
// 所有访问都必须通过 Do 在会话锁内进行。
type Session struct {
	ID        string
	OwnerID   string
	CreatedAt time.Time

	mu         sync.Mutex
	editor     *canvas.Editor
	meta       canvas.DocumentMeta
	history    []types.Message
	lastActive time.Time
	now        func() time.Time
}

// Do 在会话锁内执行 fn 并刷新活动时间
func (s *Session) Do(fn func(e *canvas.Editor)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	fn(s.editor)
}

// Meta 返回文档元数据副本
func (s *Session) Meta() canvas.DocumentMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// SetMeta 更新文档元数据（保存到工作流服务后回写 id 与版本）
func (s *Session) SetMeta(meta canvas.DocumentMeta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
}

// Conversation 返回会话记录的对话历史副本
func (s *Session) Conversation() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.history...)
}

// AppendConversation 追加一轮对话
func (s *Session) AppendConversation(msgs ...types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
}

// LastActive 返回最后活动时间
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// =============================================================================
// 🏪 会话存储
// =============================================================================

// SessionMetrics 会话指标，*metrics.Collector 实现了该接口
type SessionMetrics interface {
	SetActiveSessions(n int)
	RecordSessionsEvicted(n int)
}

type nopSessionMetrics struct{}

func (nopSessionMetrics) SetActiveSessions(int)     {}
func (nopSessionMetrics) RecordSessionsEvicted(int) {}

// SessionStore 内存中的会话存储，带容量上限与空闲过期
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg     config.SessionsConfig
	canvas  config.CanvasConfig
	metrics SessionMetrics
	base    *zap.Logger
	logger  *zap.Logger
	now     func() time.Time
}

// SessionStoreOption 配置 SessionStore
type SessionStoreOption func(*SessionStore)

// WithSessionMetrics 设置会话指标
func WithSessionMetrics(m SessionMetrics) SessionStoreOption {
	return func(s *SessionStore) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSessionClock 替换时钟（测试用）
func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore 创建会话存储
func NewSessionStore(cfg config.SessionsConfig, canvasCfg config.CanvasConfig, logger *zap.Logger, opts ...SessionStoreOption) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SessionStore{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		canvas:   canvasCfg,
		metrics:  nopSessionMetrics{},
		base:     logger,
		logger:   logger.With(zap.String("component", "session_store")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// editorOptions 将画布配置转换为编辑器选项
func (s *SessionStore) editorOptions() []canvas.EditorOption {
	c := s.canvas
	router := canvas.NewEdgeRouter()
	if c.StraightThreshold > 0 {
		router.StraightThreshold = c.StraightThreshold
	}
	if c.BendOffset > 0 {
		router.BendOffset = c.BendOffset
	}
	if c.MidX > 0 {
		router.MidX = c.MidX
	}
	if c.MidY > 0 {
		router.MidY = c.MidY
	}
	if c.MarkerRadius > 0 {
		router.MarkerRadius = c.MarkerRadius
	}

	ports := canvas.NewPortResolver()
	if c.PortHitRadius > 0 {
		ports.HitRadius = c.PortHitRadius
	}

	opts := []canvas.EditorOption{
		canvas.WithLogger(s.base),
		canvas.WithRouter(router),
		canvas.WithPortResolver(ports),
	}
	if c.HistoryCapacity > 0 {
		opts = append(opts, canvas.WithHistoryCapacity(c.HistoryCapacity))
	}
	if c.MinZoom > 0 && c.MaxZoom >= c.MinZoom {
		opts = append(opts, canvas.WithZoomRange(c.MinZoom, c.MaxZoom))
	}
	return opts
}

// Create 创建会话，doc 非空时加载文档
func (s *SessionStore) Create(ownerID string, doc *canvas.Document) (*Session, error) {
	editor := canvas.NewEditor(s.editorOptions()...)
	meta := canvas.DocumentMeta{Name: "Untitled workflow", Version: 1, Status: canvas.StatusDraft}
	if doc != nil {
		if err := editor.LoadDocument(doc); err != nil {
			return nil, err
		}
		meta = doc.DocumentMeta
		// 加载文档不应成为可撤销的一步
		editor.History().Clear()
		editor.History().Commit(editor.Model().Snapshot())
	}
	if ownerID != "" {
		meta.OwnerID = ownerID
	}

	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		CreatedAt:  now,
		editor:     editor,
		meta:       meta,
		lastActive: now,
		now:        s.now,
	}

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return nil, types.NewError(types.ErrSessionLimit, "too many open sessions").
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true)
	}
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	s.logger.Info("session created",
		zap.String("session_id", sess.ID),
		zap.String("owner_id", ownerID),
		zap.Int("nodes", len(editor.Model().Nodes())))
	return sess, nil
}

// Get 返回会话。会话有属主时，其他用户看不到它。
func (s *SessionStore) Get(id, requester string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || (sess.OwnerID != "" && sess.OwnerID != requester) {
		return nil, types.NewNotFoundError("session not found")
	}
	return sess, nil
}

// Delete 删除会话
func (s *SessionStore) Delete(id, requester string) error {
	if _, err := s.Get(id, requester); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// List 返回请求者可见的会话，按创建时间排序
func (s *SessionStore) List(requester string) []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.OwnerID == "" || sess.OwnerID == requester {
			out = append(out, sess)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len 返回会话数量
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep 清理空闲超过 IdleTTL 的会话，返回清理数量
func (s *SessionStore) Sweep() int {
	if s.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	return s.evict(s.idleSince(cutoff), cutoff)
}

// idleSince 在读锁下收集候选会话
func (s *SessionStore) idleSince(cutoff time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// evict 删除候选会话。写锁内重新检查活跃时间，
// 收集之后又被访问的会话保留。
func (s *SessionStore) evict(candidates []string, cutoff time.Time) int {
	if len(candidates) == 0 {
		return 0
	}

	s.mu.Lock()
	evicted := 0
	for _, id := range candidates {
		sess, ok := s.sessions[id]
		if !ok || !sess.LastActive().Before(cutoff) {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if evicted == 0 {
		return 0
	}
	s.metrics.SetActiveSessions(n)
	s.metrics.RecordSessionsEvicted(evicted)
	s.logger.Info("idle sessions evicted", zap.Int("count", evicted), zap.Int("remaining", n))
	return evicted
}

// Run 按 SweepInterval 周期清理，直到 ctx 结束
func (s *SessionStore) Run(ctx context.Context) error {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep()
		}
	}
}

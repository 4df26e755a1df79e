package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/api"
	"github.com/BaSui01/flowcanvas/canvas"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/types"
	"github.com/BaSui01/flowcanvas/workflowapi"
)

// =============================================================================
// 🎨 画布 Handler
// =============================================================================

// WorkflowService 外部工作流服务，*workflowapi.Client 实现了该接口
type WorkflowService interface {
	SaveWorkflow(ctx context.Context, doc *canvas.Document) (*canvas.Document, error)
	Execute(ctx context.Context, req workflowapi.ExecutionRequest) (*workflowapi.ExecutionResult, error)
	ExecuteStream(ctx context.Context, req workflowapi.ExecutionRequest) (<-chan workflowapi.StreamChunk, error)
}

// CanvasMetrics 画布指标，*metrics.Collector 实现了该接口
type CanvasMetrics interface {
	RecordCommand(op, outcome string)
	RecordValidation(valid bool, issues []metrics.IssueSample)
	WSConnected()
	WSDisconnected()
}

var (
	_ WorkflowService = (*workflowapi.Client)(nil)
	_ CanvasMetrics   = (*metrics.Collector)(nil)
)

type nopCanvasMetrics struct{}

func (nopCanvasMetrics) RecordCommand(string, string)                  {}
func (nopCanvasMetrics) RecordValidation(bool, []metrics.IssueSample) {}
func (nopCanvasMetrics) WSConnected()                                  {}
func (nopCanvasMetrics) WSDisconnected()                               {}

// CanvasHandler 处理校验、编辑会话、导出、保存与执行请求
type CanvasHandler struct {
	store          *SessionStore
	workflows      WorkflowService
	metrics        CanvasMetrics
	originPatterns []string
	logger         *zap.Logger
}

// CanvasOption 配置 CanvasHandler
type CanvasOption func(*CanvasHandler)

// WithWorkflowService 设置外部工作流服务；未设置时保存与执行返回 503
func WithWorkflowService(svc WorkflowService) CanvasOption {
	return func(h *CanvasHandler) { h.workflows = svc }
}

// WithCanvasMetrics 设置画布指标
func WithCanvasMetrics(m CanvasMetrics) CanvasOption {
	return func(h *CanvasHandler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithOriginPatterns 设置 websocket 允许的跨域来源
func WithOriginPatterns(patterns []string) CanvasOption {
	return func(h *CanvasHandler) { h.originPatterns = patterns }
}

// NewCanvasHandler 创建画布处理器
func NewCanvasHandler(store *SessionStore, logger *zap.Logger, opts ...CanvasOption) *CanvasHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &CanvasHandler{
		store:   store,
		metrics: nopCanvasMetrics{},
		logger:  logger.With(zap.String("component", "canvas_handler")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes 注册路由
func (h *CanvasHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/canvas/validate", h.HandleValidate)
	mux.HandleFunc("POST /api/v1/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions", h.HandleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/commands", h.HandleCommand)
	mux.HandleFunc("GET /api/v1/sessions/{id}/geometry", h.HandleGeometry)
	mux.HandleFunc("GET /api/v1/sessions/{id}/document", h.HandleGetDocument)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/document", h.HandlePutDocument)
	mux.HandleFunc("POST /api/v1/sessions/{id}/save", h.HandleSave)
	mux.HandleFunc("POST /api/v1/sessions/{id}/execute", h.HandleExecute)
	mux.HandleFunc("GET /api/v1/sessions/{id}/ws", h.HandleWebSocket)
}

// =============================================================================
// ✅ 校验
// =============================================================================

// HandleValidate 校验提交的文档，不创建会话
// @Summary 校验工作流文档
// @Tags 画布
// @Accept json
// @Produce json
// @Success 200 {object} api.ValidationResponse
// @Failure 422 {object} Response "文档无法解析"
// @Router /api/v1/canvas/validate [post]
func (h *CanvasHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var doc canvas.Document
	if err := decodeBody(w, r, &doc, false); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	nodes, edges, err := doc.Decode()
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	report := canvas.Validate(nodes, edges)
	h.recordValidation(report)
	WriteSuccess(w, api.NewValidationResponse(report))
}

// =============================================================================
// 🗂️ 会话
// =============================================================================

// HandleCreateSession 创建编辑会话，请求体可选地携带初始文档
// @Summary 创建编辑会话
// @Tags 会话
// @Accept json
// @Produce json
// @Success 201 {object} api.SessionResponse
// @Router /api/v1/sessions [post]
func (h *CanvasHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var doc *canvas.Document
	if r.ContentLength != 0 {
		var d canvas.Document
		if err := decodeBody(w, r, &d, false); err != nil {
			if err.Message != msgEmptyBody {
				WriteError(w, err, h.logger)
				return
			}
		} else {
			doc = &d
		}
	}

	sess, err := h.store.Create(requester(r), doc)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteStatus(w, http.StatusCreated, sessionResponse(sess))
}

// HandleListSessions 列出请求者可见的会话
func (h *CanvasHandler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.store.List(requester(r))
	out := make([]api.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, api.SessionSummary{
			ID:         s.ID,
			OwnerID:    s.OwnerID,
			Name:       s.Meta().Name,
			CreatedAt:  s.CreatedAt,
			LastActive: s.LastActive(),
		})
	}
	WriteSuccess(w, out)
}

// HandleGetSession 返回会话状态与校验结果
func (h *CanvasHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, sessionResponse(sess))
}

// HandleDeleteSession 删除会话
func (h *CanvasHandler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.Delete(id, requester(r)); err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, map[string]string{"deleted": id})
}

// HandleCommand 对会话执行一条编辑命令
// @Summary 执行编辑命令
// @Tags 会话
// @Accept json
// @Produce json
// @Success 200 {object} api.CommandResponse "命令被拒绝时 outcome.applied=false"
// @Failure 400 {object} Response "命令格式错误"
// @Router /api/v1/sessions/{id}/commands [post]
func (h *CanvasHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var cmd canvas.Command
	if err := DecodeJSONBody(w, r, &cmd, h.logger); err != nil {
		return
	}

	resp, err := h.dispatch(sess, cmd)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, resp)
}

// HandleGeometry 返回当前帧的连接点与连线路径
func (h *CanvasHandler) HandleGeometry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var g canvas.Geometry
	sess.Do(func(e *canvas.Editor) { g = e.Geometry() })
	WriteSuccess(w, g)
}

// =============================================================================
// 📄 文档
// =============================================================================

// HandleGetDocument 导出文档；?format=yaml 时返回原始 YAML
func (h *CanvasHandler) HandleGetDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, err := sessionDocument(sess)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "json":
		WriteSuccess(w, doc)
	case "yaml", "yml":
		data, err := doc.ToYAML()
		if err != nil {
			WriteAnyError(w, err, h.logger)
			return
		}
		w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="workflow.yaml"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		WriteError(w, types.NewInvalidRequestError("format must be json or yaml"), h.logger)
	}
}

// HandlePutDocument 用提交的文档替换会话内容（可撤销）
func (h *CanvasHandler) HandlePutDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var doc canvas.Document
	if err := decodeBody(w, r, &doc, false); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	var loadErr error
	sess.Do(func(e *canvas.Editor) { loadErr = e.LoadDocument(&doc) })
	if loadErr != nil {
		WriteAnyError(w, loadErr, h.logger)
		return
	}

	meta := doc.DocumentMeta
	if sess.OwnerID != "" {
		meta.OwnerID = sess.OwnerID
	}
	sess.SetMeta(meta)
	WriteSuccess(w, sessionResponse(sess))
}

// HandleSave 保存到外部工作流服务，并回写服务端分配的 id 与版本
func (h *CanvasHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.workflows == nil {
		WriteError(w, errWorkflowsDisabled(), h.logger)
		return
	}

	doc, err := sessionDocument(sess)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	saved, err := h.workflows.SaveWorkflow(r.Context(), doc)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	meta := sess.Meta()
	meta.ID = saved.ID
	if saved.Version > 0 {
		meta.Version = saved.Version
	}
	sess.SetMeta(meta)

	h.logger.Info("workflow saved",
		zap.String("session_id", sess.ID),
		zap.String("workflow_id", saved.ID),
		zap.Int("version", meta.Version))
	WriteSuccess(w, api.SaveResponse{Document: saved})
}

// =============================================================================
// ▶️ 执行
// =============================================================================

// HandleExecute 校验通过后将当前图转发给工作流服务执行
// @Summary 执行工作流
// @Tags 会话
// @Accept json
// @Produce json,text/event-stream
// @Success 200 {object} api.ExecuteResponse
// @Failure 422 {object} Response "图存在错误，不可执行"
// @Failure 503 {object} Response "工作流服务未配置或熔断"
// @Router /api/v1/sessions/{id}/execute [post]
func (h *CanvasHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req api.ExecuteRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		WriteError(w, types.NewInvalidRequestError("input is required"), h.logger)
		return
	}
	if h.workflows == nil {
		WriteError(w, errWorkflowsDisabled(), h.logger)
		return
	}

	// 请求快照在此刻生成，之后的编辑不影响本次执行
	meta := sess.Meta()
	var (
		report canvas.Report
		doc    *canvas.Document
		encErr error
	)
	sess.Do(func(e *canvas.Editor) {
		report = e.Validate()
		doc, encErr = e.Document(meta)
	})
	h.recordValidation(report)
	if encErr != nil {
		WriteAnyError(w, encErr, h.logger)
		return
	}
	if !report.ExecutionReady() {
		notReady := types.NewError(types.ErrNotExecutable, "workflow has validation errors").
			WithHTTPStatus(http.StatusUnprocessableEntity)
		writeErrorDetails(w, notReady, api.NewValidationResponse(report), h.logger)
		return
	}

	history := req.ConversationHistory
	if history == nil {
		history = sess.Conversation()
	}
	execReq := workflowapi.NewExecutionRequest(doc, req.Input, sess.ID, history)

	if req.Stream || strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.executeStream(w, r, sess, execReq)
		return
	}

	res, err := h.workflows.Execute(r.Context(), execReq)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	sess.AppendConversation(types.NewUserMessage(req.Input), types.NewAssistantMessage(res.Response))
	WriteSuccess(w, res)
}

func (h *CanvasHandler) executeStream(w http.ResponseWriter, r *http.Request, sess *Session, req workflowapi.ExecutionRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "streaming not supported", h.logger)
		return
	}

	ch, err := h.workflows.ExecuteStream(r.Context(), req)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	// 流式响应不受服务器写超时限制
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var (
		reply strings.Builder
		done  bool
	)
	for chunk := range ch {
		if chunk.Err != nil {
			chunk = workflowapi.StreamChunk{Error: chunk.Err.Message}
		}
		reply.WriteString(chunk.Content)
		done = done || chunk.Done

		data, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			h.logger.Debug("stream client went away", zap.Error(err))
			return
		}
		flusher.Flush()
	}

	if done {
		sess.AppendConversation(types.NewUserMessage(req.Input), types.NewAssistantMessage(reply.String()))
	}
}

// =============================================================================
// 🔌 WebSocket
// =============================================================================

// HandleWebSocket 每个文本帧是一条命令，每条回复是命令结果与新状态
func (h *CanvasHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxBodyBytes)

	h.metrics.WSConnected()
	defer h.metrics.WSDisconnected()

	ctx := r.Context()
	log := h.logger.With(zap.String("session_id", sess.ID))
	log.Debug("websocket connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		var cmd canvas.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.metrics.RecordCommand("unknown", "invalid")
			if werr := wsjson.Write(ctx, conn, api.CommandError{Error: "invalid command JSON"}); werr != nil {
				return
			}
			continue
		}

		resp, err := h.dispatch(sess, cmd)
		if err != nil {
			err = wsjson.Write(ctx, conn, api.CommandError{Error: err.Error()})
		} else {
			err = wsjson.Write(ctx, conn, resp)
		}
		if err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func errWorkflowsDisabled() *types.Error {
	return types.NewError(types.ErrServiceUnavailable, "workflow api is not configured").
		WithHTTPStatus(http.StatusServiceUnavailable)
}

func requester(r *http.Request) string {
	id, _ := types.UserID(r.Context())
	return id
}

func (h *CanvasHandler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := h.store.Get(r.PathValue("id"), requester(r))
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return nil, false
	}
	return sess, true
}

// dispatch 执行命令并记录指标；返回的错误只表示命令格式错误
func (h *CanvasHandler) dispatch(sess *Session, cmd canvas.Command) (api.CommandResponse, error) {
	var (
		resp api.CommandResponse
		err  error
	)
	sess.Do(func(e *canvas.Editor) {
		resp.Outcome, err = e.Dispatch(cmd)
		resp.State = e.State()
	})

	op := string(cmd.Op)
	switch {
	case err != nil:
		if errors.Is(err, canvas.ErrUnknownCommand) {
			op = "unknown"
		}
		h.metrics.RecordCommand(op, "invalid")
	case resp.Outcome.Applied:
		h.metrics.RecordCommand(op, "applied")
	default:
		h.metrics.RecordCommand(op, "rejected")
	}
	return resp, err
}

func (h *CanvasHandler) recordValidation(r canvas.Report) {
	samples := make([]metrics.IssueSample, 0, len(r.Issues))
	for _, is := range r.Issues {
		samples = append(samples, metrics.IssueSample{Severity: string(is.Severity), Code: string(is.Code)})
	}
	h.metrics.RecordValidation(r.Valid(), samples)
}

func sessionDocument(sess *Session) (*canvas.Document, error) {
	meta := sess.Meta()
	var (
		doc *canvas.Document
		err error
	)
	sess.Do(func(e *canvas.Editor) { doc, err = e.Document(meta) })
	return doc, err
}

func sessionResponse(sess *Session) api.SessionResponse {
	resp := api.SessionResponse{
		ID:        sess.ID,
		OwnerID:   sess.OwnerID,
		Meta:      sess.Meta(),
		CreatedAt: sess.CreatedAt,
	}
	sess.Do(func(e *canvas.Editor) {
		resp.State = e.State()
		resp.Validation = api.NewValidationResponse(e.Validate())
	})
	resp.LastActive = sess.LastActive()
	return resp
}

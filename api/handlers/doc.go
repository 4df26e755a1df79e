// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 FlowCanvas HTTP API 的请求处理器实现。

# 概述

handlers 包实现了画布服务所有 HTTP 端点的请求处理逻辑，
包括文档校验、编辑会话、命令分发、几何查询、导出与保存、
工作流执行（同步与 SSE 流式）以及健康检查。
所有 Handler 均遵循标准 net/http 接口，路由使用 Go 1.22 的
方法 + 路径模式注册。

# 核心类型

  - CanvasHandler：校验、会话、命令、文档、保存、执行与 WebSocket
  - SessionStore：内存会话存储，带容量上限与空闲过期清理
  - Session：单个编辑会话，Editor 访问在会话锁内串行化
  - HealthHandler：服务健康检查（/health, /healthz, /ready, /version）
  - Response：统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo：结构化错误信息，含 code、message、details、retryable
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码与响应大小
  - WorkflowService：外部工作流服务接口，由 workflowapi.Client 实现

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteAnyError 辅助函数
  - 画布哨兵错误 → API 错误码与 HTTP 状态码自动映射
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - 会话属主隔离：他人的会话一律表现为不存在
  - 执行前校验：存在 error 级别问题时返回 422 与完整校验报告
  - SSE 流式执行：透传上游分片，完整结束后记入会话对话历史
  - WebSocket 命令通道：每帧一条命令，每条回复为结果与新状态
  - 可扩展就绪检查：RegisterCheck 注册 HealthCheck，非关键检查失败仅降级
*/
package handlers

// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 flowcanvas 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 canvas 会话层、
workflowapi 客户端与 HTTP 层提供统一的错误与上下文契约。

# 核心类型

  - Error / ErrorCode：结构化错误，含 HTTP 状态码、Retryable、Upstream 标记
  - Message / Role：随执行请求发送的对话历史条目

# 主要能力

  - Context 传播：WithTraceID / WithRequestID / WithUserID / WithSessionID
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode / StatusFor
  - 常用错误构造：NewInvalidRequestError / NewNotFoundError / NewUpstreamError
*/
package types

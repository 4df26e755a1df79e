// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 FlowCanvas 服务端程序入口。

# 概述

cmd/flowcanvas 是画布编辑服务的可执行入口，提供 HTTP API 服务、
离线文档校验、健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、
结构化日志（zap）、Prometheus 指标、OpenTelemetry 追踪以及配置热重载。

# 核心类型

  - Server：主服务器，管理 API 与 Metrics 双端口、会话清理及优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、validate（校验工作流文件）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、Metrics、
    RequestLogger、CORS、RateLimiter（基于 IP）、APIKeyAuth 或 JWTAuth
  - 配置热重载：日志级别即时生效，端口与认证变更提示重启
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main

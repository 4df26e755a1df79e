// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package config 提供 flowcanvas 服务的配置管理功能。

# 概述

配置按 默认值 → YAML 文件 → 环境变量 的优先级逐层覆盖。
环境变量键名由前缀与结构体 env 标签拼接而成，
例如 FLOWCANVAS_CANVAS_MAX_ZOOM。

# 核心类型

  - Config: 完整配置，包含 Server、Canvas、WorkflowAPI、Sessions、Auth、Log、Telemetry
  - Loader: Builder 模式的配置加载器
  - Watcher: 轮询配置文件修改时间并在变更后重新加载

# 主要能力

  - 默认值: DefaultConfig 及各分区的 Default*Config
  - 校验: Config.Validate 检查端口、缩放范围、历史容量与认证模式
  - 热重载: Watcher.OnReload 回调，用于在运行时调整日志级别
*/
package config

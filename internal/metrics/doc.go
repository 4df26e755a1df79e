// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、画布编辑与外部工作流 API 三个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。指标注册到
调用方传入的 Registerer，测试可使用独立的 Registry 互不干扰。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 画布指标：编辑命令结果计数、校验问题分布、活跃会话数、websocket 连接数。
  - 工作流 API 指标：调用计数与耗时、熔断器状态。
*/
package metrics

// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package canvas 提供工作流画布背后的图编辑引擎。

# 概述

canvas 保存智能体工作流的节点与连线模型，以及绘制所需的几何计算
（平移缩放、按节点类型划分的连接端口、连线路由），并提供有界的
撤销/重做历史和结构校验。本包与具体 UI 框架无关：前端或
api/handlers 中的会话层通过命令和指针事件驱动 Editor，再读回
状态、几何与诊断信息。

# 核心类型

  - GraphModel：节点与连线，维护引用完整性
  - ViewTransform：平移缩放及屏幕与世界坐标互转
  - PortResolver：按节点类型计算屏幕空间中的连接点
  - EdgeRouter：连线描边与命中区域的曲线路径
  - History：有界快照栈，支持撤销与重做
  - Validate：环路、孤立节点、起止点与必填字段检查
  - Editor：命令层，每个操作提交一次历史
  - Document：与工作流 API 交换的线上格式

# 并发

本包所有逻辑都在调用方的 goroutine 上执行，不是并发安全的；
共享同一个 Editor 的调用方需要自行串行化访问。
*/
package canvas

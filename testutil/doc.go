// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 FlowCanvas 测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，
避免重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertJSONEqual / AssertEventuallyTrue
  - 流式辅助: CollectStreamChunks / CollectStreamContent /
    SendChunksToChannel，用于执行流测试

# 子包

  - testutil/mocks: MockWorkflowService（工作流服务），支持 Builder 模式与错误注入
  - testutil/fixtures: 预置工作流文档与对话历史

# 使用示例

	ctx := testutil.TestContext(t)
	svc := mocks.NewMockWorkflowService().WithReplyPrefix("echo: ")
	res, err := svc.Execute(ctx, req)
*/
package testutil

/*
包 llm 定义辩论管线消费的统一 LLM Provider 契约。

# 概述

管线对推理后端的全部要求是一次同步补全：给定 system/user 指令、
采样温度与可选的输出形状约束，返回自由文本。具体厂商客户端
（gemini/claude/openai）在 providers/ 下实现本包的 Provider 接口。

# 错误语义

Provider 边界上的错误统一为 Error（错误码 + HTTP 状态 + 可重试标记）。
瞬态错误由 Provider 内部通过 llm/retry 做有界指数退避重试；
重试耗尽后错误向上传播，管线按阶段降级策略处理，不再重试。
*/
package llm

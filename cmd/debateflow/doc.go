// Package main 是 Debateflow 的命令行入口。
//
// 支持三个子命令：
//
//	run      加载配置，绑定 4 个参与者到 LLM 后端，
//	         执行一场完整辩论并输出最终裁决 JSON
//	health   对配置的所有后端执行健康检查
//	version  输出构建时注入的版本信息
package main

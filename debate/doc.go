// Package debate 实现多 LLM 结构化辩论管线。
//
// 一场辩论有恰好 4 个参与者：1 个 Judge 与 3 个 Solver
// （Solver_1、Solver_2、Solver_3），经由五个严格顺序的阶段产出最终裁决：
//
//	Stage 0  角色自评与分配（贪心置信度排序，违例回退默认分配）
//	Stage 1  独立求解（三个 Solver 并发，失败者省略）
//	Stage 2  同行评审（最多 6 个有序对，失败的对跳过）
//	Stage 3  精炼（逐条接受/拒绝评审意见，失败沿用初始解）
//	Stage 4  裁决（Judge 选出获胜标签，答案从精炼解表覆写）
//
// 阶段边界是同步屏障：阶段内允许并发扇出，跨阶段绝不重叠。
// 每个阶段都有降级策略，正常运行下辩论总能产出一个 FinalVerdict；
// 唯一的提前退出是 context 取消。
package debate

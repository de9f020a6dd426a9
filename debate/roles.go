package debate

import (
	"fmt"
	"sort"
)

// AssessmentEntry 把参与者与其自评按输入顺序配对。
// 输入顺序即平局裁定顺序，因此这里用有序切片而非 map。
type AssessmentEntry struct {
	Participant string
	Assessment  RoleAssessment
}

// AssignRoles 按自评贪心分配角色。
//
// 算法：(1) 按 confidence_judge 降序稳定排序，首位成为 Judge，
// 平局由输入顺序裁定；(2) 其余三人按 confidence_solver 降序稳定
// 排序，依次赋予 Solver_1..3。单趟贪心，不回溯 Judge 的选择。
//
// 纯函数：调用方负责恰好传入 4 条已校验的自评，
// 并在之后检查 1 Judge + 3 Solver 的后置条件。
func AssignRoles(entries []AssessmentEntry) map[string]string {
	byJudge := make([]AssessmentEntry, len(entries))
	copy(byJudge, entries)
	sort.SliceStable(byJudge, func(i, j int) bool {
		return byJudge[i].Assessment.ConfidenceJudge > byJudge[j].Assessment.ConfidenceJudge
	})

	assignments := make(map[string]string, len(entries))
	assignments[byJudge[0].Participant] = RoleJudge

	remaining := byJudge[1:]
	bySolver := make([]AssessmentEntry, len(remaining))
	copy(bySolver, remaining)
	sort.SliceStable(bySolver, func(i, j int) bool {
		return bySolver[i].Assessment.ConfidenceSolver > bySolver[j].Assessment.ConfidenceSolver
	})

	for idx, e := range bySolver {
		assignments[e.Participant] = fmt.Sprintf("Solver_%d", idx+1)
	}
	return assignments
}

// ValidateRoleMap 检查角色分配的后置条件：恰好 1 Judge 且
// Solver_1/2/3 各出现一次。
func ValidateRoleMap(roleMap map[string]string) error {
	if len(roleMap) != NumParticipants {
		return fmt.Errorf("%w: expected %d assignments, got %d", ErrInvariantViolation, NumParticipants, len(roleMap))
	}

	counts := make(map[string]int, NumParticipants)
	for _, label := range roleMap {
		counts[label]++
	}

	if counts[RoleJudge] != 1 {
		return fmt.Errorf("%w: expected exactly 1 %s, got %d", ErrInvariantViolation, RoleJudge, counts[RoleJudge])
	}
	for _, label := range SolverLabels {
		if counts[label] != 1 {
			return fmt.Errorf("%w: expected exactly 1 %s, got %d", ErrInvariantViolation, label, counts[label])
		}
	}
	return nil
}

// DefaultRoleMap 是后置条件失败时的确定性兜底分配：
// 首个参与者为 Judge，其余按输入顺序为 Solver_1..3。
func DefaultRoleMap(participants []string) map[string]string {
	assignments := make(map[string]string, len(participants))
	for i, p := range participants {
		if i == 0 {
			assignments[p] = RoleJudge
			continue
		}
		assignments[p] = fmt.Sprintf("Solver_%d", i)
	}
	return assignments
}

// ReverseRoleMap 派生标签到参与者的反向映射。
func ReverseRoleMap(roleMap map[string]string) map[string]string {
	reverse := make(map[string]string, len(roleMap))
	for participant, label := range roleMap {
		reverse[label] = participant
	}
	return reverse
}

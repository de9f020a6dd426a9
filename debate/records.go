package debate

import (
	"fmt"
	"strings"
)

// 角色标签集合。RoleMap 是参与者到这四个标签的双射。
const (
	RoleJudge   = "Judge"
	RoleSolver1 = "Solver_1"
	RoleSolver2 = "Solver_2"
	RoleSolver3 = "Solver_3"
)

// SolverLabels 按固定顺序列出三个 Solver 标签。
// 阶段内的迭代顺序以此为准，保证跨运行确定性。
var SolverLabels = []string{RoleSolver1, RoleSolver2, RoleSolver3}

// NumParticipants 是辩论的固定参与者数量：1 Judge + 3 Solver。
const NumParticipants = 4

// RoleAssessment 是参与者在 Stage 0 产出的自评。
// RolePreferences 仅作语义提示，置信度字段才是分配依据。
type RoleAssessment struct {
	RolePreferences  []string `json:"role_preferences"`
	ConfidenceSolver float64  `json:"confidence_solver"`
	ConfidenceJudge  float64  `json:"confidence_judge"`
	Reasoning        string   `json:"reasoning"`
}

// Validate 校验自评记录的边界约束。
func (a *RoleAssessment) Validate() error {
	if len(a.RolePreferences) == 0 {
		return fmt.Errorf("role_preferences must not be empty")
	}
	if a.ConfidenceSolver < 0 || a.ConfidenceSolver > 1 {
		return fmt.Errorf("confidence_solver %.3f out of range [0,1]", a.ConfidenceSolver)
	}
	if a.ConfidenceJudge < 0 || a.ConfidenceJudge > 1 {
		return fmt.Errorf("confidence_judge %.3f out of range [0,1]", a.ConfidenceJudge)
	}
	return nil
}

// NeutralAssessment 返回解析失败时替换用的中性自评。
func NeutralAssessment(reason string) RoleAssessment {
	return RoleAssessment{
		RolePreferences:  []string{"Solver", "Judge"},
		ConfidenceSolver: 0.5,
		ConfidenceJudge:  0.5,
		Reasoning:        "fallback assessment: " + reason,
	}
}

// ChangeRecord 记录精炼阶段对单条批评的处理。
type ChangeRecord struct {
	Critique string `json:"critique"`
	Response string `json:"response"`
	Accepted bool   `json:"accepted"`
}

// SolverSolution 是 Solver 在 Stage 1（初始）与 Stage 3（精炼）产出的解答。
// ChangesMade 仅精炼解填写。
type SolverSolution struct {
	Reasoning       string         `json:"reasoning"`
	RefinedSolution string         `json:"refined_solution,omitempty"`
	RefinedAnswer   string         `json:"refined_answer"`
	Confidence      float64        `json:"confidence"`
	ChangesMade     []ChangeRecord `json:"changes_made,omitempty"`
}

// Validate 校验解答记录的边界约束。
func (s *SolverSolution) Validate() error {
	if strings.TrimSpace(s.Reasoning) == "" {
		return fmt.Errorf("reasoning must not be empty")
	}
	if strings.TrimSpace(s.RefinedAnswer) == "" {
		return fmt.Errorf("refined_answer must not be empty")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %.3f out of range [0,1]", s.Confidence)
	}
	return nil
}

// 结构化错误记录的严重程度。开放枚举：未知取值不拒绝。
const (
	SeverityCritical   = "critical"
	SeverityMinor      = "minor"
	SeveritySuggestion = "suggestion"
)

// ErrorDetail 是同行评审中的一条结构化错误记录。
type ErrorDetail struct {
	Location    string `json:"location"`
	ErrorType   string `json:"error_type"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// PeerReview 是 Stage 2 中一个 (reviewer, reviewed) 有序对的评审。
// SolutionID 在解析后立即被覆写为被评审方的角色标签，
// 模型自报的标识不被信任。
type PeerReview struct {
	SolutionID        string        `json:"solution_id"`
	Strengths         []string      `json:"strengths"`
	Weaknesses        []string      `json:"weaknesses"`
	Errors            []ErrorDetail `json:"errors"`
	SuggestedChanges  []string      `json:"suggested_changes"`
	OverallAssessment string        `json:"overall_assessment"`
}

// Validate 校验评审记录的边界约束。
func (r *PeerReview) Validate() error {
	if strings.TrimSpace(r.OverallAssessment) == "" {
		return fmt.Errorf("overall_assessment must not be empty")
	}
	for i, e := range r.Errors {
		if strings.TrimSpace(e.Description) == "" {
			return fmt.Errorf("errors[%d].description must not be empty", i)
		}
	}
	return nil
}

// FinalVerdict 是 Judge 在 Stage 4 产出的终局裁决。
// WinningAnswer 由管线从精炼解表中覆写，Judge 仅负责选出获胜标签。
// Fallback 标记该裁决是否来自降级路径。
type FinalVerdict struct {
	Winner        string  `json:"winner"`
	WinningAnswer string  `json:"winning_answer"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	Fallback      bool    `json:"fallback,omitempty"`
}

// Validate 校验裁决记录的边界约束。
func (v *FinalVerdict) Validate() error {
	if strings.TrimSpace(v.Winner) == "" {
		return fmt.Errorf("winner must not be empty")
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("confidence %.3f out of range [0,1]", v.Confidence)
	}
	return nil
}

// DebateHistory 是单次辩论的全量过程记录。
// 每个字段在对应阶段屏障处一次性写入，之后只读；
// 不同辩论各持有独立实例，不跨并发共享。
type DebateHistory struct {
	DebateID string `json:"debate_id"`
	Question string `json:"question"`

	// Stage 0
	Assessments    map[string]RoleAssessment `json:"assessments"`      // participant -> assessment
	RoleMap        map[string]string         `json:"role_map"`         // participant -> label
	ReverseRoleMap map[string]string         `json:"reverse_role_map"` // label -> participant

	// Stage 1
	InitialSolutions map[string]SolverSolution `json:"initial_solutions"` // label -> solution

	// Stage 2
	Reviews map[string][]PeerReview `json:"reviews"` // reviewer label -> reviews

	// Stage 3
	RefinedSolutions map[string]SolverSolution `json:"refined_solutions"` // label -> solution

	// Stage 4
	Verdict *FinalVerdict `json:"verdict,omitempty"`
}

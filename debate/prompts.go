package debate

import (
	"fmt"
	"sort"
	"strings"
)

// 各阶段的提示词构造。system 指令固定，user 指令嵌入问题与
// 前序阶段的物化输出；全部构造是纯字符串拼接，确定性的。

// --- Stage 0 ---

const assessSystemPrompt = `You are a participant in a multi-LLM structured debate. ` +
	`The debate has two role types: a Solver independently produces and refines an answer to the question; ` +
	`a Judge adjudicates among the refined answers using objective criteria. ` +
	`Analyze the question and assess your own fitness for each role. Respond ONLY in JSON.`

func assessUserPrompt(question string) string {
	return fmt.Sprintf("Question: %s\n\nProvide your role preferences, your confidence for the Solver role and for the Judge role (each 0 to 1), and a short justification.", question)
}

// --- Stage 1 ---

func solveSystemPrompt(label string) string {
	return fmt.Sprintf("You are an expert reasoner participating in a structured debate as %s. %s Respond ONLY in JSON.", label, PersonaFor(label))
}

func solveUserPrompt(question, label string) string {
	return fmt.Sprintf("Question: %s\n\nYou are %s. Solve the question independently. Report your step-by-step reasoning, an optional long-form write-up, a short canonical answer, and your confidence (0 to 1).", question, label)
}

// --- Stage 2 ---

func reviewSystemPrompt(reviewerLabel string) string {
	return fmt.Sprintf("You are %s, acting as a harsh but fair critic in a structured debate. %s Scrutinize the given solution for logical errors, unsupported claims, and gaps. Respond ONLY in JSON.", reviewerLabel, PersonaFor(reviewerLabel))
}

func reviewUserPrompt(question, reviewedLabel string, sol SolverSolution) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	fmt.Fprintf(&sb, "Solution under review (%s):\nAnswer: %s\nReasoning: %s\n\n", reviewedLabel, sol.RefinedAnswer, sol.Reasoning)
	sb.WriteString("Review this solution. List strengths, weaknesses, structured error records (location, error_type, description, severity: critical/minor/suggestion), suggested changes, and an overall assessment.")
	return sb.String()
}

// --- Stage 3 ---

func refineSystemPrompt(label string) string {
	return fmt.Sprintf("You are %s in a structured debate, revising your solution after peer review. %s For EVERY critique in the feedback, explicitly accept or reject it and report it in changes_made as {critique, response, accepted}. Respond ONLY in JSON.", label, PersonaFor(label))
}

func refineUserPrompt(question string, own SolverSolution, critiqueBlock string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", question)
	fmt.Fprintf(&sb, "Your original answer: %s\nYour original reasoning: %s\n\n", own.RefinedAnswer, own.Reasoning)
	sb.WriteString("Peer critiques:\n")
	sb.WriteString(critiqueBlock)
	sb.WriteString("\nProduce your refined solution: updated reasoning, optional long-form write-up, a short canonical answer, confidence (0 to 1), and changes_made covering every critique above.")
	return sb.String()
}

// renderCritiques 把一个 Solver 收到的全部评审渲染为确定性的
// 文本块：每条评审一段，依次列出长处、弱点、结构化错误（含
// 严重程度）与修改建议。reviews 须已按确定顺序排好。
func renderCritiques(reviews []PeerReview) string {
	if len(reviews) == 0 {
		return "(no peer critiques were received)\n"
	}

	var sb strings.Builder
	for i, r := range reviews {
		fmt.Fprintf(&sb, "Critique %d:\n", i+1)
		if len(r.Strengths) > 0 {
			fmt.Fprintf(&sb, "  Strengths: %s\n", strings.Join(r.Strengths, "; "))
		}
		if len(r.Weaknesses) > 0 {
			fmt.Fprintf(&sb, "  Weaknesses: %s\n", strings.Join(r.Weaknesses, "; "))
		}
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  Error [%s] at %s (%s): %s\n", e.Severity, e.Location, e.ErrorType, e.Description)
		}
		if len(r.SuggestedChanges) > 0 {
			fmt.Fprintf(&sb, "  Suggested changes: %s\n", strings.Join(r.SuggestedChanges, "; "))
		}
		fmt.Fprintf(&sb, "  Overall: %s\n", r.OverallAssessment)
	}
	return sb.String()
}

// --- Stage 4 ---

const judgeSystemPrompt = `You are the Judge of a structured debate among three Solvers. ` +
	`Evaluate the candidates on objective criteria: logical correctness, responsiveness to critique, rigor, and clarity. ` +
	`Pick the winning Solver by its role label. Do NOT rewrite or transcribe the winning answer yourself. Respond ONLY in JSON.`

// judgeCandidate 是 Stage 4 评审上下文中的单个候选。
type judgeCandidate struct {
	Label   string
	Initial SolverSolution
	Refined SolverSolution
	Reviews []PeerReview // 该候选收到的全部评审，确定性顺序
}

func judgeUserPrompt(question string, candidates []judgeCandidate) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n\n", question)

	for _, c := range candidates {
		fmt.Fprintf(&sb, "=== %s ===\n", c.Label)
		fmt.Fprintf(&sb, "Original answer: %s (confidence %.2f)\nOriginal reasoning: %s\n", c.Initial.RefinedAnswer, c.Initial.Confidence, c.Initial.Reasoning)

		for i, r := range c.Reviews {
			fmt.Fprintf(&sb, "Review %d received: %s (%d strengths, %d weaknesses, %d errors: %s)\n",
				i+1, r.OverallAssessment, len(r.Strengths), len(r.Weaknesses), len(r.Errors), summarizeSeverities(r.Errors))
		}

		fmt.Fprintf(&sb, "Refined answer: %s (confidence %.2f)\nRefined reasoning: %s\n", c.Refined.RefinedAnswer, c.Refined.Confidence, c.Refined.Reasoning)
		for _, ch := range c.Refined.ChangesMade {
			verdict := "rejected"
			if ch.Accepted {
				verdict = "accepted"
			}
			fmt.Fprintf(&sb, "Change (%s): %s -> %s\n", verdict, ch.Critique, ch.Response)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Choose the winner. Report the winning role label, your confidence (0 to 1), and your justification.")
	return sb.String()
}

// summarizeSeverities 统计结构化错误的严重程度分布。
func summarizeSeverities(errs []ErrorDetail) string {
	if len(errs) == 0 {
		return "none"
	}
	counts := map[string]int{}
	for _, e := range errs {
		counts[e.Severity]++
	}
	parts := make([]string, 0, len(counts))
	for _, sev := range []string{SeverityCritical, SeverityMinor, SeveritySuggestion} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	var other []string
	for sev := range counts {
		if sev != SeverityCritical && sev != SeverityMinor && sev != SeveritySuggestion {
			other = append(other, sev)
		}
	}
	sort.Strings(other)
	for _, sev := range other {
		parts = append(parts, fmt.Sprintf("%d %s", counts[sev], sev))
	}
	return strings.Join(parts, ", ")
}

package debate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/debateflow/internal/metrics"
	"github.com/BaSui01/debateflow/llm"
	"github.com/BaSui01/debateflow/llm/tokenizer"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 阶段名称，用于历史记录、日志与指标标签。
const (
	StageRoles      = "role_assignment"
	StageSolve      = "independent_solving"
	StageReview     = "peer_review"
	StageRefinement = "refinement"
	StageJudgment   = "judgment"
)

// Participant 把一个不透明标识与一个推理后端绑定，
// 绑定关系在整场辩论内不变。
type Participant struct {
	Name     string
	Model    string
	Provider llm.Provider
}

// Options 管线调优参数。
type Options struct {
	AssessTemperature float32       // Stage 0 采样温度
	SolveTemperature  float32       // Stage 1 采样温度
	ReviewTemperature float32       // Stage 2 采样温度
	JudgeTemperature  float32       // Stage 4 采样温度（默认 0，利于裁决可复现）
	CallTimeout       time.Duration // 单次后端调用超时
	MaxTokens         int           // 单次调用最大输出 token 数
}

// DefaultOptions 返回默认管线参数。
func DefaultOptions() Options {
	return Options{
		AssessTemperature: 0.7,
		SolveTemperature:  0.7,
		ReviewTemperature: 0.7,
		JudgeTemperature:  0.0,
		CallTimeout:       120 * time.Second,
		MaxTokens:         4096,
	}
}

// Orchestrator 驱动五阶段辩论管线。
// 实例自身无辩论内可变状态：每次 RunFullDebate 的中间结果
// 全部通过显式值在阶段间传递，同一实例可并发运行多场辩论。
type Orchestrator struct {
	participants []Participant // 固定 4 个，顺序即平局裁定顺序
	byName       map[string]Participant
	opts         Options
	logger       *zap.Logger
	metrics      *metrics.Collector
	tracer       trace.Tracer
	tokenizers   map[string]tokenizer.Tokenizer // model -> tokenizer
}

// NewOrchestrator 创建辩论编排器。
// 参与者数量不是 4、名称重复或后端缺失均为致命配置错误。
func NewOrchestrator(participants []Participant, opts Options, logger *zap.Logger, collector *metrics.Collector) (*Orchestrator, error) {
	if len(participants) != NumParticipants {
		return nil, fmt.Errorf("debate requires exactly %d participants, got %d", NumParticipants, len(participants))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultOptions().CallTimeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultOptions().MaxTokens
	}

	byName := make(map[string]Participant, len(participants))
	tokenizers := make(map[string]tokenizer.Tokenizer, len(participants))
	for i, p := range participants {
		if p.Name == "" {
			return nil, fmt.Errorf("participant %d: name must not be empty", i)
		}
		if p.Provider == nil {
			return nil, fmt.Errorf("participant %q: provider must not be nil", p.Name)
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("participant %q: duplicate name", p.Name)
		}
		byName[p.Name] = p
		if _, ok := tokenizers[p.Model]; !ok {
			tokenizers[p.Model] = tokenizer.ForModel(p.Model)
		}
	}

	return &Orchestrator{
		participants: participants,
		byName:       byName,
		opts:         opts,
		logger:       logger.With(zap.String("component", "debate_orchestrator")),
		metrics:      collector,
		tracer:       otel.Tracer("debateflow/debate"),
		tokenizers:   tokenizers,
	}, nil
}

// RunFullDebate 执行一场完整辩论：Stage 0→1→2→3→4 严格顺序，
// 每个阶段的提示词由前一阶段的全量物化输出构造，阶段边界即
// 同步屏障。正常运行下总会返回一个 FinalVerdict；唯一的错误
// 出口是 context 取消，此时丢弃部分结果。
func (o *Orchestrator) RunFullDebate(ctx context.Context, question string) (*FinalVerdict, *DebateHistory, error) {
	debateID := uuid.New().String()
	logger := o.logger.With(zap.String("debate_id", debateID))

	ctx, span := o.tracer.Start(ctx, "debate.run",
		trace.WithAttributes(attribute.String("debate.id", debateID)))
	defer span.End()

	logger.Info("debate started", zap.Int("participants", len(o.participants)))
	start := time.Now()

	hist := &DebateHistory{
		DebateID: debateID,
		Question: question,
	}

	// Stage 0: 角色分配
	roleMap, reverse, assessments, err := o.runRoleAssignment(ctx, logger, question)
	if err != nil {
		return nil, nil, err
	}
	hist.Assessments = assessments
	hist.RoleMap = roleMap
	hist.ReverseRoleMap = reverse

	// Stage 1: 独立求解
	initial, err := o.runIndependentSolving(ctx, logger, question, reverse)
	if err != nil {
		return nil, nil, err
	}
	hist.InitialSolutions = initial

	// Stage 2: 同行评审
	reviews, err := o.runPeerReview(ctx, logger, question, reverse, initial)
	if err != nil {
		return nil, nil, err
	}
	hist.Reviews = reviews

	// Stage 3: 精炼
	refined, err := o.runRefinement(ctx, logger, question, reverse, initial, reviews)
	if err != nil {
		return nil, nil, err
	}
	hist.RefinedSolutions = refined

	// Stage 4: 裁决
	verdict, err := o.runJudgment(ctx, logger, question, reverse, initial, reviews, refined)
	if err != nil {
		return nil, nil, err
	}
	hist.Verdict = verdict

	o.metrics.RecordDebate(time.Since(start))
	logger.Info("debate completed",
		zap.String("winner", verdict.Winner),
		zap.Bool("fallback", verdict.Fallback),
		zap.Duration("duration", time.Since(start)))

	return verdict, hist, nil
}

// generate 发起单次后端调用并返回自由文本。
// 瞬态重试在 Provider 内部完成；这里只做超时、指标与追踪。
func (o *Orchestrator) generate(ctx context.Context, stage string, p Participant, system, user string, temp float32, schema json.RawMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
	defer cancel()

	if t, ok := o.tokenizers[p.Model]; ok {
		if n, err := t.CountTokens(system + user); err == nil {
			o.metrics.ObservePromptTokens(stage, n)
		}
	}

	req := &llm.ChatRequest{
		TraceID: uuid.New().String(),
		Model:   p.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		MaxTokens:      o.opts.MaxTokens,
		Temperature:    temp,
		ResponseSchema: schema,
	}

	start := time.Now()
	resp, err := p.Provider.Completion(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.metrics.RecordBackendCall(p.Provider.Name(), stage, outcome, time.Since(start))
	if err != nil {
		return "", err
	}
	return resp.FirstText()
}

// runRoleAssignment 执行 Stage 0。
// 每个参与者一次后端调用；提取/校验失败替换为中性自评而非中止。
// 分配后检查 1 Judge + 3 Solver 后置条件，违例回退到确定性默认分配。
func (o *Orchestrator) runRoleAssignment(ctx context.Context, logger *zap.Logger, question string) (map[string]string, map[string]string, map[string]RoleAssessment, error) {
	ctx, span := o.tracer.Start(ctx, "debate.stage."+StageRoles)
	defer span.End()
	start := time.Now()
	defer func() { o.metrics.ObserveStage(StageRoles, time.Since(start)) }()

	results := make([]RoleAssessment, len(o.participants))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range o.participants {
		g.Go(func() error {
			text, err := o.generate(gctx, StageRoles, p, assessSystemPrompt, assessUserPrompt(question), o.opts.AssessTemperature, assessmentSchema)
			if err != nil {
				logger.Warn("role assessment call failed, substituting neutral assessment",
					zap.String("participant", p.Name), zap.Error(err))
				o.metrics.RecordFallback(StageRoles, "neutral_assessment")
				results[i] = NeutralAssessment(err.Error())
				return nil
			}

			var a RoleAssessment
			if err := decodeRecord(text, &a); err == nil {
				err = a.Validate()
			}
			if err != nil {
				verr := &ValidationError{Stage: StageRoles, Participant: p.Name, Err: err}
				logger.Warn("role assessment invalid, substituting neutral assessment", zap.Error(verr))
				o.metrics.RecordFallback(StageRoles, "neutral_assessment")
				results[i] = NeutralAssessment(verr.Error())
				return nil
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, err
	}

	assessments := make(map[string]RoleAssessment, len(o.participants))
	entries := make([]AssessmentEntry, len(o.participants))
	for i, p := range o.participants {
		assessments[p.Name] = results[i]
		entries[i] = AssessmentEntry{Participant: p.Name, Assessment: results[i]}
	}

	roleMap := AssignRoles(entries)
	if err := ValidateRoleMap(roleMap); err != nil {
		logger.Warn("role map invariant violated, applying default assignment", zap.Error(err))
		o.metrics.RecordFallback(StageRoles, "default_role_map")
		names := make([]string, len(o.participants))
		for i, p := range o.participants {
			names[i] = p.Name
		}
		roleMap = DefaultRoleMap(names)
	}

	reverse := ReverseRoleMap(roleMap)
	logger.Info("roles assigned", zap.String("judge", reverse[RoleJudge]))
	return roleMap, reverse, assessments, nil
}

// runIndependentSolving 执行 Stage 1。
// 三个 Solver 的调用相互独立并发执行；失败的 Solver 从结果中
// 省略（不替换），下游阶段须容忍缺失。
func (o *Orchestrator) runIndependentSolving(ctx context.Context, logger *zap.Logger, question string, reverse map[string]string) (map[string]SolverSolution, error) {
	ctx, span := o.tracer.Start(ctx, "debate.stage."+StageSolve)
	defer span.End()
	start := time.Now()
	defer func() { o.metrics.ObserveStage(StageSolve, time.Since(start)) }()

	results := make([]*SolverSolution, len(SolverLabels))
	g, gctx := errgroup.WithContext(ctx)
	for i, label := range SolverLabels {
		p, ok := o.byName[reverse[label]]
		if !ok {
			continue
		}
		g.Go(func() error {
			text, err := o.generate(gctx, StageSolve, p, solveSystemPrompt(label), solveUserPrompt(question, label), o.opts.SolveTemperature, solutionSchema)
			if err != nil {
				logger.Warn("solver call failed, omitting solution",
					zap.String("solver", label), zap.Error(err))
				o.metrics.RecordFallback(StageSolve, "omitted")
				return nil
			}

			var s SolverSolution
			if err := decodeRecord(text, &s); err == nil {
				err = s.Validate()
			}
			if err != nil {
				verr := &ValidationError{Stage: StageSolve, Participant: p.Name, Err: err}
				logger.Warn("solver solution invalid, omitting", zap.String("solver", label), zap.Error(verr))
				o.metrics.RecordFallback(StageSolve, "omitted")
				return nil
			}
			results[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	solutions := make(map[string]SolverSolution, len(SolverLabels))
	for i, label := range SolverLabels {
		if results[i] != nil {
			solutions[label] = *results[i]
		}
	}
	logger.Info("independent solving completed", zap.Int("solutions", len(solutions)))
	return solutions, nil
}

// reviewPair 是 Stage 2 中的一个 (reviewer, reviewed) 有序对。
type reviewPair struct {
	reviewer string
	reviewed string
}

// runPeerReview 执行 Stage 2。
// 每个 reviewer≠reviewed 的有序对一次调用，最多 6 次，并发执行。
// 自己无解的 reviewer 整体跳过；无解的 reviewed 对应的对跳过。
// 校验通过后 SolutionID 立即覆写为被评审方的角色标签。
func (o *Orchestrator) runPeerReview(ctx context.Context, logger *zap.Logger, question string, reverse map[string]string, initial map[string]SolverSolution) (map[string][]PeerReview, error) {
	ctx, span := o.tracer.Start(ctx, "debate.stage."+StageReview)
	defer span.End()
	start := time.Now()
	defer func() { o.metrics.ObserveStage(StageReview, time.Since(start)) }()

	var pairs []reviewPair
	for _, reviewer := range SolverLabels {
		if _, ok := initial[reviewer]; !ok {
			continue // 没有自己的解，无从评审
		}
		for _, reviewed := range SolverLabels {
			if reviewed == reviewer {
				continue
			}
			if _, ok := initial[reviewed]; !ok {
				continue
			}
			pairs = append(pairs, reviewPair{reviewer: reviewer, reviewed: reviewed})
		}
	}

	results := make([]*PeerReview, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		p, ok := o.byName[reverse[pair.reviewer]]
		if !ok {
			continue
		}
		g.Go(func() error {
			text, err := o.generate(gctx, StageReview, p, reviewSystemPrompt(pair.reviewer), reviewUserPrompt(question, pair.reviewed, initial[pair.reviewed]), o.opts.ReviewTemperature, reviewSchema)
			if err != nil {
				logger.Warn("peer review call failed, skipping",
					zap.String("reviewer", pair.reviewer),
					zap.String("reviewed", pair.reviewed),
					zap.Error(err))
				o.metrics.RecordFallback(StageReview, "skipped")
				return nil
			}

			var r PeerReview
			if err := decodeRecord(text, &r); err == nil {
				err = r.Validate()
			}
			if err != nil {
				verr := &ValidationError{Stage: StageReview, Participant: p.Name, Err: err}
				logger.Warn("peer review invalid, skipping",
					zap.String("reviewer", pair.reviewer),
					zap.String("reviewed", pair.reviewed),
					zap.Error(verr))
				o.metrics.RecordFallback(StageReview, "skipped")
				return nil
			}

			// 模型自报的 solution_id 不被信任，立即归一化为被评审方标签
			r.SolutionID = pair.reviewed
			results[i] = &r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reviews := make(map[string][]PeerReview)
	total := 0
	for i, pair := range pairs {
		if results[i] != nil {
			reviews[pair.reviewer] = append(reviews[pair.reviewer], *results[i])
			total++
		}
	}
	logger.Info("peer review completed", zap.Int("reviews", total))
	return reviews, nil
}

// reviewsFor 收集归一化 solution_id 等于给定标签的全部评审。
// 评审按 reviewer 分组存储，这里做跨 reviewer 的线性扫描，
// reviewer 迭代顺序固定为 SolverLabels 顺序以保证确定性。
func reviewsFor(label string, reviews map[string][]PeerReview) []PeerReview {
	var out []PeerReview
	for _, reviewer := range SolverLabels {
		for _, r := range reviews[reviewer] {
			if r.SolutionID == label {
				out = append(out, r)
			}
		}
	}
	return out
}

// runRefinement 执行 Stage 3。
// 每个有初始解的 Solver 一次调用；失败时原样沿用 Stage 1 的解。
func (o *Orchestrator) runRefinement(ctx context.Context, logger *zap.Logger, question string, reverse map[string]string, initial map[string]SolverSolution, reviews map[string][]PeerReview) (map[string]SolverSolution, error) {
	ctx, span := o.tracer.Start(ctx, "debate.stage."+StageRefinement)
	defer span.End()
	start := time.Now()
	defer func() { o.metrics.ObserveStage(StageRefinement, time.Since(start)) }()

	results := make([]*SolverSolution, len(SolverLabels))
	g, gctx := errgroup.WithContext(ctx)
	for i, label := range SolverLabels {
		own, ok := initial[label]
		if !ok {
			continue
		}
		p, pok := o.byName[reverse[label]]
		if !pok {
			continue
		}
		critiqueBlock := renderCritiques(reviewsFor(label, reviews))
		g.Go(func() error {
			text, err := o.generate(gctx, StageRefinement, p, refineSystemPrompt(label), refineUserPrompt(question, own, critiqueBlock), o.opts.SolveTemperature, solutionSchema)
			if err == nil {
				var s SolverSolution
				if derr := decodeRecord(text, &s); derr == nil {
					derr = s.Validate()
					if derr == nil {
						results[i] = &s
						return nil
					}
					err = derr
				} else {
					err = derr
				}
			}

			// 优雅降级：精炼失败时沿用初始解
			logger.Warn("refinement failed, carrying forward initial solution",
				zap.String("solver", label), zap.Error(err))
			o.metrics.RecordFallback(StageRefinement, "carry_forward")
			carried := own
			results[i] = &carried
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refined := make(map[string]SolverSolution, len(SolverLabels))
	for i, label := range SolverLabels {
		if results[i] != nil {
			refined[label] = *results[i]
		}
	}
	logger.Info("refinement completed", zap.Int("solutions", len(refined)))
	return refined, nil
}

// runJudgment 执行 Stage 4。
// Judge 单次调用。裁决的 winning_answer 一律从精炼解表覆写，
// Judge 只被信任选出获胜标签；标签无法解析或解析彻底失败时，
// 回退到精炼置信度最高的 Solver 作为合成裁决。
func (o *Orchestrator) runJudgment(ctx context.Context, logger *zap.Logger, question string, reverse map[string]string, initial map[string]SolverSolution, reviews map[string][]PeerReview, refined map[string]SolverSolution) (*FinalVerdict, error) {
	ctx, span := o.tracer.Start(ctx, "debate.stage."+StageJudgment)
	defer span.End()
	start := time.Now()
	defer func() { o.metrics.ObserveStage(StageJudgment, time.Since(start)) }()

	// 候选：同时具有初始解与精炼解的 Solver
	var candidates []judgeCandidate
	for _, label := range SolverLabels {
		init, iok := initial[label]
		ref, rok := refined[label]
		if !iok || !rok {
			continue
		}
		candidates = append(candidates, judgeCandidate{
			Label:   label,
			Initial: init,
			Refined: ref,
			Reviews: reviewsFor(label, reviews),
		})
	}

	if len(candidates) == 0 {
		logger.Error("no solver produced a solution, returning empty fallback verdict")
		o.metrics.RecordFallback(StageJudgment, "no_candidates")
		return &FinalVerdict{
			Reasoning: "fallback verdict: no solver produced a valid solution",
			Fallback:  true,
		}, nil
	}

	judge, ok := o.byName[reverse[RoleJudge]]
	if !ok {
		// 角色分配保证 Judge 存在；这里仅防御配置被外部破坏
		return nil, fmt.Errorf("no participant bound to %s role", RoleJudge)
	}

	text, err := o.generate(ctx, StageJudgment, judge, judgeSystemPrompt, judgeUserPrompt(question, candidates), o.opts.JudgeTemperature, verdictSchema)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("judge call failed, falling back to highest-confidence winner", zap.Error(err))
		o.metrics.RecordFallback(StageJudgment, "highest_confidence")
		return fallbackVerdict(refined, "judge call failed"), nil
	}

	var v FinalVerdict
	if derr := decodeRecord(text, &v); derr == nil {
		derr = v.Validate()
		if derr != nil {
			err = derr
		}
	} else {
		err = derr
	}
	if err != nil {
		verr := &ValidationError{Stage: StageJudgment, Participant: judge.Name, Err: err}
		logger.Warn("verdict invalid, falling back to highest-confidence winner", zap.Error(verr))
		o.metrics.RecordFallback(StageJudgment, "highest_confidence")
		return fallbackVerdict(refined, "verdict could not be parsed"), nil
	}

	winner, ok := resolveWinnerLabel(v.Winner, refined)
	if !ok {
		logger.Warn("winner label unresolvable, falling back to highest-confidence winner",
			zap.String("reported_winner", v.Winner),
			zap.Error(fmt.Errorf("%w: %q", ErrResolution, v.Winner)))
		o.metrics.RecordFallback(StageJudgment, "highest_confidence")
		return fallbackVerdict(refined, fmt.Sprintf("winner label %q could not be resolved", v.Winner)), nil
	}

	// Judge 不被信任转写答案：覆写为获胜者的精炼规范答案
	v.Winner = winner
	v.WinningAnswer = refined[winner].RefinedAnswer
	return &v, nil
}

// resolveWinnerLabel 把 Judge 报告的获胜标签解析为已知 Solver
// 角色标签。大小写不敏感，空格与下划线等价（"solver 2" → Solver_2）。
func resolveWinnerLabel(reported string, refined map[string]SolverSolution) (string, bool) {
	norm := strings.ReplaceAll(strings.TrimSpace(reported), " ", "_")
	for _, label := range SolverLabels {
		if strings.EqualFold(norm, label) {
			if _, ok := refined[label]; ok {
				return label, true
			}
		}
	}
	return "", false
}

// fallbackVerdict 构造合成裁决：按 SolverLabels 顺序取精炼
// 置信度最高的 Solver，平局取靠前标签，保证确定性。
func fallbackVerdict(refined map[string]SolverSolution, reason string) *FinalVerdict {
	best := ""
	bestConfidence := -1.0
	for _, label := range SolverLabels {
		s, ok := refined[label]
		if !ok {
			continue
		}
		if s.Confidence > bestConfidence {
			best = label
			bestConfidence = s.Confidence
		}
	}

	if best == "" {
		return &FinalVerdict{
			Reasoning: "fallback verdict: " + reason + "; no refined solutions available",
			Fallback:  true,
		}
	}

	return &FinalVerdict{
		Winner:        best,
		WinningAnswer: refined[best].RefinedAnswer,
		Confidence:    refined[best].Confidence,
		Reasoning:     fmt.Sprintf("fallback verdict: %s; selected %s with highest refined confidence %.2f", reason, best, refined[best].Confidence),
		Fallback:      true,
	}
}

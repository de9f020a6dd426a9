package debate

import (
	"errors"
	"fmt"
)

// 阶段内错误分类。这些错误均被阶段内的降级策略消化，
// 正常运行下不会从 RunFullDebate 传播出去。
var (
	// ErrInvariantViolation 表示 Stage 0 后 RoleMap 不满足 1 Judge + 3 Solver。
	ErrInvariantViolation = errors.New("role map invariant violated")

	// ErrResolution 表示 Stage 4 的获胜标签无法匹配到已知 Solver 角色。
	ErrResolution = errors.New("winner label cannot be resolved")
)

// ValidationError 表示提取出的文本不符合期望的结构形状。
type ValidationError struct {
	Stage       string
	Participant string
	Err         error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed at %s for %s: %v", e.Stage, e.Participant, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

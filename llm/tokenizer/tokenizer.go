package tokenizer

// Tokenizer 是统一的 token 计数接口。
// 辩论编排器用它估算各阶段提示词的规模并上报指标。
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数
	CountTokens(text string) (int, error)

	// Name 返回分词器的名称
	Name() string
}

// ForModel 返回适合给定模型的分词器。
// OpenAI 系模型使用 tiktoken 精确计数，其余模型回退到字符估算。
func ForModel(model string) Tokenizer {
	if t, err := NewTiktokenTokenizer(model); err == nil {
		return t
	}
	return NewEstimator(model)
}

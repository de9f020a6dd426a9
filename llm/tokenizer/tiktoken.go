package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 为 OpenAI 系模型提供精确的 tiktoken 计数。
type TiktokenTokenizer struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// modelEncodings 将模型名前缀映射到 tiktoken 编码。
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 分词器。
// 未知模型返回错误，由调用方回退到估算器。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	encoding, ok := modelEncodings[model]
	if !ok {
		// 取最长前缀：gpt-4o-mini 同时匹配 gpt-4o 与 gpt-4，
		// 必须命中更长的 gpt-4o
		longest := ""
		for prefix, e := range modelEncodings {
			if strings.HasPrefix(model, prefix) && len(prefix) > len(longest) {
				longest = prefix
				encoding = e
				ok = true
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("no tiktoken encoding for model: %s", model)
	}

	return &TiktokenTokenizer{model: model, encoding: encoding}, nil
}

// init 延迟加载编码表（首次计数时触发）。
func (t *TiktokenTokenizer) init() {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("load tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	t.init()
	if t.initErr != nil {
		return 0, t.initErr
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *TiktokenTokenizer) Name() string { return "tiktoken/" + t.encoding }

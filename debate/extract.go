package debate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractStructured 从后端自由文本中取出用于机器解析的子串。
// 识别一组封闭的包裹惯例，按序尝试：
//  1. ```json 标注的围栏块（取第一个的内部）
//  2. 无语言标注的 ``` 围栏块
//  3. 去除首尾空白后的全文
//
// 本函数自身不报错：无法识别时交给后续校验以 ValidationError 失败。
func ExtractStructured(raw string) string {
	if inner, ok := fencedBlock(raw, "```json"); ok {
		return inner
	}
	if inner, ok := fencedBlock(raw, "```"); ok {
		return inner
	}
	return strings.TrimSpace(raw)
}

// fencedBlock 返回第一个以 marker 开始的围栏块内部。
func fencedBlock(raw, marker string) (string, bool) {
	start := strings.Index(raw, marker)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(marker):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// braceSpan 返回首个 '{' 到末个 '}' 的子串。
// 围栏提取后的最后兜底：处理 JSON 前后带散文且无围栏的输出。
func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// decodeRecord 提取并反序列化后端文本到目标记录。
// 先按围栏惯例提取；直接解析失败时再尝试括号扫描兜底。
func decodeRecord(raw string, out any) error {
	text := ExtractStructured(raw)

	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}

	span, ok := braceSpan(text)
	if !ok {
		return fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(span), out); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}

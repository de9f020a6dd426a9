package debate

import "encoding/json"

// 各阶段请求的输出形状约束（JSON Schema 描述符）。
// 支持原生约束的 Provider 直接消费；其余 Provider 注入提示词。

var assessmentSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "role_preferences": {"type": "array", "items": {"type": "string"}},
    "confidence_solver": {"type": "number", "minimum": 0, "maximum": 1},
    "confidence_judge": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"}
  },
  "required": ["role_preferences", "confidence_solver", "confidence_judge", "reasoning"]
}`)

var solutionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "reasoning": {"type": "string"},
    "refined_solution": {"type": "string"},
    "refined_answer": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "changes_made": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "critique": {"type": "string"},
          "response": {"type": "string"},
          "accepted": {"type": "boolean"}
        },
        "required": ["critique", "response", "accepted"]
      }
    }
  },
  "required": ["reasoning", "refined_answer", "confidence"]
}`)

var reviewSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "solution_id": {"type": "string"},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "weaknesses": {"type": "array", "items": {"type": "string"}},
    "errors": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "location": {"type": "string"},
          "error_type": {"type": "string"},
          "description": {"type": "string"},
          "severity": {"type": "string"}
        },
        "required": ["location", "error_type", "description", "severity"]
      }
    },
    "suggested_changes": {"type": "array", "items": {"type": "string"}},
    "overall_assessment": {"type": "string"}
  },
  "required": ["solution_id", "strengths", "weaknesses", "errors", "suggested_changes", "overall_assessment"]
}`)

var verdictSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "winner": {"type": "string"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "reasoning": {"type": "string"}
  },
  "required": ["winner", "confidence", "reasoning"]
}`)

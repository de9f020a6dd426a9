package debate

// Persona 是偏置 Solver 推理风格的固定框架文本。
// 按角色标签查表，未识别的标签回退到通用框架。
var personas = map[string]string{
	RoleSolver1: "You reason from first principles. Break the problem down to its fundamental components, state your assumptions explicitly, and build the solution up step by step from the basics.",
	RoleSolver2: "You are a skeptical critic by nature. Question every assumption, actively look for counterexamples and edge cases, and only commit to an answer once you have tried to break it.",
	RoleSolver3: "You are a creative strategist. Consider unconventional approaches, analogies, and reformulations of the problem before settling on the most promising line of attack.",
}

const genericPersona = "You approach problems methodically and explain your reasoning clearly."

// PersonaFor 返回给定角色标签的 Persona 文本。
func PersonaFor(label string) string {
	if p, ok := personas[label]; ok {
		return p
	}
	return genericPersona
}

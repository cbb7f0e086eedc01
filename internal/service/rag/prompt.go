package rag

import (
	"fmt"
	"strings"

	"github.com/ashwinyue/rag-chat/internal/service/types"
)

// HistoryLimit 参与拼装的历史消息条数上限
const HistoryLimit = 10

const systemPrompt = "You are a precise and helpful enterprise assistant for users.\n" +
	"PRIMARY RULES:\n" +
	"- If relevant context is provided, answer using only that context.\n" +
	"- Do not add, assume, or invent facts that are not in the context.\n" +
	"WHEN CONTEXT IS SUFFICIENT:\n" +
	"- Give a clear, concise, and structured answer grounded in the context.\n" +
	"WHEN CONTEXT IS PARTIAL:\n" +
	"- Answer the part supported by context.\n" +
	"- Ask 1–2 focused follow-up questions, if required.\n" +
	"WHEN NO RELEVANT CONTEXT IS AVAILABLE:\n" +
	"- Do NOT say you lack context or documents.\n" +
	"- Provide general guidance based on common best practices.\n" +
	"- Clearly signal uncertainty with phrases like 'Typically', 'In general', or 'This may depend on your setup'.\n" +
	"- Politely handle requests for information not in the context.\n" +
	"STYLE:\n" +
	"- Be concise, neutral, and helpful.\n" +
	"- Prefer bullet points or short paragraphs.\n" +
	"- Focus on solving the user's problem."

// BuildContext 每个命中一个编号块，块之间空行分隔
func BuildContext(hits []types.Hit) string {
	blocks := make([]string, len(hits))
	for i, h := range hits {
		blocks[i] = fmt.Sprintf("[%d] File: %s\n%s", i+1, h.Filename, h.Text)
	}
	return strings.Join(blocks, "\n\n")
}

// BuildMessages 系统指令、检索上下文、最近的历史、当前问题
func BuildMessages(message string, history []types.Message, hits []types.Hit) []types.Message {
	msgs := []types.Message{
		{Role: types.RoleSystem, Content: systemPrompt},
		{Role: types.RoleSystem, Content: "Use this retrieved context:\n\n" + BuildContext(hits)},
	}

	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	for _, m := range history {
		if (m.Role == types.RoleUser || m.Role == types.RoleAssistant) && m.Content != "" {
			msgs = append(msgs, m)
		}
	}

	return append(msgs, types.Message{Role: types.RoleUser, Content: message})
}

// Tokens 按空格切分，每个片段带一个尾随空格
func Tokens(text string) []string {
	parts := strings.Split(text, " ")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = p + " "
	}
	return out
}

package ai

import (
	"strings"

	"github.com/zhouzirui/ai-chat/backend/internal/model/chat"
)

const conversationPrompt = "The following is a friendly conversation between a human and an AI. " +
	"The AI is talkative and provides lots of specific details from its context. " +
	"If the AI does not know the answer to a question, it truthfully says it does not know."

const codeSystemPrompt = "You are an expert programmer."

// codeTemplate uses FString placeholders.
const codeTemplate = `Generate code based on the following prompt:
{prompt}

Provide only the code without explanations, unless specifically asked.`

// renderCodePrompt fills codeTemplate for backends without a template engine.
func renderCodePrompt(prompt string) string {
	return codeSystemPrompt + " " + strings.Replace(codeTemplate, "{prompt}", prompt, 1)
}

// trimHistory keeps the last limit messages.
func trimHistory(messages []chat.Message, limit int) []chat.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

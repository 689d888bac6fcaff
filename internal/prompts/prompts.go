// Package prompts holds the static conversation templates used by the chat chain.
package prompts

import (
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Template is a chat prompt laid out as [system, chat history, human input].
// The system text may reference variables as {name}.
type Template struct {
	Name   string
	System string
}

const (
	historyVariable = "chat_history"
	inputVariable   = "input"
)

// QuestionMaker rewrites a follow-up question into a standalone one.
var QuestionMaker = Template{
	Name: "question_maker",
	System: "Given a chat history and the latest user question which might reference context in the chat history, " +
		"formulate a standalone question which can be understood without the chat history. " +
		"Do NOT answer the question, just reformulate it if needed and otherwise return it as is.",
}

// Answer answers the question from the retrieved {context}.
var Answer = Template{
	Name: "answer",
	System: "You are an assistant for question-answering tasks.\n" +
		"Use the following pieces of retrieved context to answer the question.\n" +
		"If you don't know the answer, just say that you don't know.\n" +
		"Context: {context}",
}

// Messages renders the template: the system message with vars substituted,
// followed by history and the human input.
func (t Template) Messages(vars map[string]string, history []Message, input string) []Message {
	out := make([]Message, 0, len(history)+2)
	out = append(out, Message{Role: RoleSystem, Content: fill(t.System, vars)})
	out = append(out, history...)
	out = append(out, Message{Role: RoleHuman, Content: input})
	return out
}

// PrettyRepr renders the unfilled template in a human readable form, with a
// title bar per message. Its token count stands in for the template overhead.
func (t Template) PrettyRepr() string {
	parts := []string{
		titleBar("System Message") + "\n\n" + t.System,
		titleBar("Messages Placeholder") + "\n\n{" + historyVariable + "}",
		titleBar("Human Message") + "\n\n{" + inputVariable + "}",
	}
	return strings.Join(parts, "\n\n")
}

// titleBar centres title in an 80 column rule of '='.
func titleBar(title string) string {
	padded := " " + title + " "
	sep := strings.Repeat("=", (80-len(padded))/2)
	second := sep
	if len(padded)%2 == 1 {
		second += "="
	}
	return sep + padded + second
}

func fill(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

package usecase

import (
	"strings"

	"campus-assistant/internal/domain/model"
)

const promptPreamble = `You are the virtual admissions assistant for the university website.
Answer questions from prospective students, applicants and visitors about the university's schools, programs, admissions, news and events.
Be friendly, concise and accurate. Use only the institutional information provided below when stating facts about the university.
If the information needed is not listed, say you are not sure and suggest contacting the admissions office or submitting an inquiry.`

const promptClosing = `Keep answers under 200 words unless the user asks for detail.
Never invent programs, dates, fees or contact details. Do not answer questions unrelated to the university; politely steer the conversation back.`

// SafeGuidanceReply is returned in place of a completion when moderation flags a message.
const SafeGuidanceReply = "I'm sorry, but I can't help with that. If you or someone else is in danger, please contact local emergency services or campus security right away. " +
	"I'm happy to answer questions about our programs, admissions, news and events."

// ComposePrompt joins the preamble, the rendered sections enabled in set
// (always in schools, programs, news, events order) and the closing
// instruction, separated by blank lines.
func ComposePrompt(rendered map[model.Section]string, set model.SectionSet) string {
	parts := make([]string, 0, len(model.Sections)+2)
	parts = append(parts, promptPreamble)
	for _, sec := range set.Ordered() {
		parts = append(parts, rendered[sec])
	}
	parts = append(parts, promptClosing)
	return strings.Join(parts, "\n\n")
}

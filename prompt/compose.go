// Package prompt builds the text sent to the model for a question.
package prompt

import (
	"strings"
)

// DefaultLesson is listed when no lessons are configured.
const DefaultLesson = "Unit 1: Basics of cybersecurity and Linux setup"

// Composer wraps a question with the terminal context and response rules.
type Composer struct {
	Lessons []string
}

// Compose builds the request text with the default lesson list.
func Compose(snapshot, question string) string {
	return Composer{}.Compose(snapshot, question)
}

// Compose returns the instructional text for question given the current
// terminal snapshot. The result depends only on its inputs.
func (c Composer) Compose(snapshot, question string) string {
	lessons := c.Lessons
	if len(lessons) == 0 {
		lessons = []string{DefaultLesson}
	}

	var sb strings.Builder
	sb.WriteString("You are a cybersecurity AI helper assisting a student with a Linux terminal simulation.\n\n")
	sb.WriteString("CONTEXT:\n")
	sb.WriteString("The user is interacting with a web-based terminal.\n")
	sb.WriteString("Here is the recent terminal history (commands and outputs):\n")
	sb.WriteString(fence(snapshot))
	sb.WriteString("\n\nINSTRUCTIONS:\n")
	sb.WriteString("1. Answer the user's question based on the terminal context above if relevant.\n")
	sb.WriteString("2. If the question correlates to the following lessons, list them in resources:\n")
	for _, lesson := range lessons {
		sb.WriteString("   - ")
		sb.WriteString(lesson)
		sb.WriteString("\n")
	}
	sb.WriteString("3. Be helpful, concise, and educational.\n")
	sb.WriteString("4. Format your response with Markdown (bold, lists, code blocks).\n\n")
	sb.WriteString("USER QUESTION:\n")
	sb.WriteString(question)
	return sb.String()
}

// fence wraps text in a code fence long enough that backticks inside the
// snapshot cannot close it.
func fence(text string) string {
	marker := "```"
	for strings.Contains(text, marker) {
		marker += "`"
	}
	return marker + "\n" + text + "\n" + marker
}

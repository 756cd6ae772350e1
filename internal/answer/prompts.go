package answer

import "fmt"

const (
	quickSystemPrompt = "You are a helpful assistant that answers using real-time search context."
	deepSystemPrompt  = "You are a helpful assistant that answers questions using detailed web content. Provide citations with URLs when possible."
)

func quickUserPrompt(context, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", context, question)
}

func deepUserPrompt(context, question string) string {
	return fmt.Sprintf("Based on the following web content, answer the question. Include relevant citations.\n\nContent:\n%s\n\nQuestion: %s", context, question)
}

package driven

// PromptStore loads user-customisable LLM prompt templates.
type PromptStore interface {
	// Load returns the template for the given prompt name.
	Load(name string) (string, error)
}

// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage (~/.carebot/config.toml)
//   - PromptStore: user-editable LLM prompt templates (~/.carebot/prompts)
package file

// Package markup extracts readable text from Markdown and HTML documents,
// dropping formatting that would otherwise end up in chunk text.
package markup

// Package format renders text for Telegram's legacy Markdown parse mode.
package format

import "strings"

var mdEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// MD escapes the characters legacy Markdown treats as markup.
func MD(text string) string {
	return mdEscaper.Replace(text)
}

// Field writes a "*label:* value" line with value escaped. A blank line
// follows when gap is set.
func Field(b *strings.Builder, label, value string, gap bool) {
	b.WriteString("*")
	b.WriteString(MD(label))
	b.WriteString(":* ")
	b.WriteString(MD(value))
	b.WriteString("\n")
	if gap {
		b.WriteString("\n")
	}
}

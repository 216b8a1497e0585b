package ui

import tele "gopkg.in/telebot.v4"

// Article builds an inline query result that posts Markdown text when picked.
// thumbURL may be empty.
func Article(id, title, description, text, thumbURL string) *tele.ArticleResult {
	result := &tele.ArticleResult{
		Title:       title,
		Description: description,
		Text:        text,
		ThumbURL:    thumbURL,
	}
	result.SetResultID(id)
	result.SetContent(&tele.InputTextMessageContent{Text: text, ParseMode: tele.ModeMarkdown})
	return result
}

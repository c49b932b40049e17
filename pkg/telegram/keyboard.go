package telegram

// Keyboard types mirror the Bot API inline keyboard shape without
// depending on a concrete client library; the tgbotapi adapter converts
// them at the edge.

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton
}

// InlineKeyboardButton carries either CallbackData or a URL; Telegram
// rejects buttons with both.
type InlineKeyboardButton struct {
	Text         string
	CallbackData string
	URL          string
}

func NewInlineKeyboardMarkup(rows ...[]InlineKeyboardButton) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func NewInlineKeyboardRow(buttons ...InlineKeyboardButton) []InlineKeyboardButton {
	return buttons
}

// NewInlineKeyboardButtonData builds a button that fires a callback query.
func NewInlineKeyboardButtonData(text, callbackData string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: callbackData}
}

// NewInlineKeyboardButtonURL builds a button that opens a URL.
func NewInlineKeyboardButtonURL(text, url string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, URL: url}
}

// Package keyboard renders engine reply options as telebot reply keyboards.
package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

const buttonsPerRow = 3

// Options builds a one-time reply keyboard with one button per option, three to a row. Without
// options the previous keyboard is removed.
func Options(options []string) *telebot.ReplyMarkup {
	if len(options) == 0 {
		return &telebot.ReplyMarkup{RemoveKeyboard: true}
	}

	markup := &telebot.ReplyMarkup{
		ResizeKeyboard:  true,
		OneTimeKeyboard: true,
	}

	rows := make([]telebot.Row, 0, (len(options)+buttonsPerRow-1)/buttonsPerRow)
	for start := 0; start < len(options); start += buttonsPerRow {
		end := min(start+buttonsPerRow, len(options))
		btns := make([]telebot.Btn, 0, end-start)
		for _, opt := range options[start:end] {
			btns = append(btns, markup.Text(opt))
		}
		rows = append(rows, markup.Row(btns...))
	}

	markup.Reply(rows...)
	return markup
}

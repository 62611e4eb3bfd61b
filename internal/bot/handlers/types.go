// Package handlers holds the telebot handlers of a business bot account.
package handlers

import (
	telebot "gopkg.in/telebot.v3"
)

// Handler processes one update.
type Handler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

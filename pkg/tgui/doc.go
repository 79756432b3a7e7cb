// Package tgui provides small Telegram UI helpers:
//   - HTML fragments that are safe for ParseMode="HTML"
//   - Callback data helpers ("prefix:action:payload")
//   - Confirm keyboards and list paging
package tgui

package history

import "github.com/papercomputeco/dechat/pkg/utils"

// Title returns the display title of a chat: "Chat " and the first eight
// characters of its id.
func Title(chatID string) string {
	return "Chat " + utils.Truncate(chatID, 8)
}

package dispatch

import (
	"fmt"

	"github.com/hfi/postlink-bot/internal/resolver"
)

// Fixed reply texts.
const (
	StartMessage = "Hi!\n" +
		"• Anyone: /postno00001  → get link\n" +
		"• Admin:  /upload <post> <url>  → set/override"
	UnauthorizedMessage = "🚫 You are not authorised."
	UsageMessage        = "Usage: /upload <postNumber> <full_url>"
	NotDigitsMessage    = "First arg must be digits."
)

// BoundsMessage is the reply for a post number outside 1..maxPost.
func BoundsMessage(maxPost int) string {
	return fmt.Sprintf("❌ Post must be 1–%d.", maxPost)
}

// SavedMessage confirms a stored override.
func SavedMessage(n int) string {
	return fmt.Sprintf("✅ Saved custom link for post %s.", resolver.FormatPostNumber(n))
}

// SaveFailedMessage reports an override that could not be persisted.
func SaveFailedMessage(n int) string {
	return fmt.Sprintf("⚠️ Could not save link for post %s, please retry.", resolver.FormatPostNumber(n))
}

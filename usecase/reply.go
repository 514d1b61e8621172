package usecase

import "strings"

// ReplyVerdict classifies a confirmation-mode reply.
type ReplyVerdict int

const (
	ReplyUnparseable ReplyVerdict = iota
	ReplyAffirmative
	ReplyNegative
)

// Canonical reply strings sent to the confirm endpoint. The backend receives
// these regardless of how the user actually phrased the reply.
const (
	canonicalAffirmative = "confirm"
	canonicalNegative    = "cancel"
)

var affirmativeTokens = []string{"confirm", "yes", "ok", "okay", "agree", "yeah", "sure", "确认", "是的", "好的"}

var negativeTokens = []string{"cancel", "no", "refuse", "stop", "取消", "不", "不要"}

// ParseReply classifies a free-text confirmation reply by case-insensitive
// containment against the affirmative and negative token sets. A reply that
// matches both sets, or neither, is unparseable and the user is re-prompted.
func ParseReply(text string) ReplyVerdict {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return ReplyUnparseable
	}

	affirmative := containsAny(lower, affirmativeTokens)
	negative := containsAny(lower, negativeTokens)

	switch {
	case affirmative && negative:
		return ReplyUnparseable
	case affirmative:
		return ReplyAffirmative
	case negative:
		return ReplyNegative
	default:
		return ReplyUnparseable
	}
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

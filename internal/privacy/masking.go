package privacy

import (
	"strings"

	"zapcentral/internal/constants"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "5511999998888" -> "*********8888"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	keep := constants.DefaultPhoneMaskLength
	if strings.HasPrefix(phone, "+") {
		if len(phone) <= keep+1 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-keep-1) + phone[len(phone)-keep:]
	}

	if len(phone) <= keep {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-keep) + phone[len(phone)-keep:]
}

// MaskChatID masks a chat ID while keeping the address domain visible
// Example: "5511999998888@c.us" -> "*********8888@c.us"
func MaskChatID(chatID string) string {
	if chatID == "" {
		return ""
	}

	if at := strings.Index(chatID, "@"); at >= 0 {
		return MaskPhoneNumber(chatID[:at]) + chatID[at:]
	}
	return MaskPhoneNumber(chatID)
}

// MaskSessionID masks the phone digits embedded in a session identifier
// Example: "session_5511999998888" -> "session_*********8888"
func MaskSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}

	if strings.HasPrefix(sessionID, constants.SessionIDPrefix) {
		return constants.SessionIDPrefix + MaskPhoneNumber(sessionID[len(constants.SessionIDPrefix):])
	}
	return MaskPhoneNumber(sessionID)
}

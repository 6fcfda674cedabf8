package console

import "github.com/mattmezza/alertdesk/internal/instance"

var icons = map[instance.Type]string{
	instance.TypeDingTalk: "🔔",
	instance.TypeWeChat:   "💬",
	instance.TypeFeiShu:   "🪶",
	instance.TypeEmail:    "✉️",
	instance.TypeSms:      "📱",
	instance.TypeHttp:     "🌐",
	instance.TypeTelegram: "✈️",
}

const unknownIcon = "❔"

// Icon returns the avatar glyph for an instance type.
func Icon(t instance.Type) string {
	if icon, ok := icons[t]; ok {
		return icon
	}
	return unknownIcon
}

package instance

import (
	"fmt"
	"strings"
	"time"
)

// Type is the channel kind of an alert instance.
type Type string

const (
	TypeDingTalk Type = "DingTalk"
	TypeWeChat   Type = "WeChat"
	TypeFeiShu   Type = "FeiShu"
	TypeEmail    Type = "Email"
	TypeSms      Type = "Sms"
	TypeHttp     Type = "Http"
	TypeTelegram Type = "Telegram"
)

// Types returns every supported channel kind in display order.
func Types() []Type {
	return []Type{TypeDingTalk, TypeWeChat, TypeFeiShu, TypeEmail, TypeSms, TypeHttp, TypeTelegram}
}

// ParseType resolves a type name case-insensitively.
func ParseType(s string) (Type, error) {
	for _, t := range Types() {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown alert instance type %q", s)
}

// Valid reports whether t is one of the canonical type names.
func (t Type) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// Instance is a configured notification channel.
// Params holds the serialized channel-specific configuration.
type Instance struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	Type       Type      `json:"type"`
	Enabled    bool      `json:"enabled"`
	Params     string    `json:"params"`
	CreateTime time.Time `json:"createTime,omitempty"`
	UpdateTime time.Time `json:"updateTime,omitempty"`
}

// IsNew reports whether the instance has not been persisted yet.
func (i Instance) IsNew() bool {
	return i.ID == 0
}

// DecodedParams decodes Params into the typed variant for the instance type.
func (i Instance) DecodedParams() (Params, error) {
	return DecodeParams(i.Type, i.Params)
}

package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys used by the alert instance screen.
const (
	KeyManagement    = "rc.ai.management"
	KeyCreate        = "rc.ai.create"
	KeyDelete        = "rc.ai.delete"
	KeyDeleteConfirm = "rc.ai.deleteConfirm"
	KeyTest          = "rc.ai.test"
	KeyTestSent      = "rc.ai.testSent"
	KeyEmpty         = "rc.ai.empty"
	KeyLoading       = "rc.ai.loading"
	KeyName          = "rc.ai.name"
	KeyType          = "rc.ai.type"
	KeyParams        = "rc.ai.params"
	KeyEnabled       = "rc.ai.enabled"
	KeyConfirm       = "button.confirm"
	KeyCancel        = "button.cancel"
	KeyEdit          = "button.edit"
	KeySubmit        = "button.submit"
)

var messages = map[language.Tag]map[string]string{
	language.English: {
		KeyManagement:    "Alert Instance Management",
		KeyCreate:        "Create",
		KeyDelete:        "Delete alert instance",
		KeyDeleteConfirm: "Are you sure you want to delete this alert instance?",
		KeyTest:          "Test",
		KeyTestSent:      "Test message sent",
		KeyEmpty:         "No alert instances",
		KeyLoading:       "Loading...",
		KeyName:          "Name",
		KeyType:          "Type",
		KeyParams:        "Params",
		KeyEnabled:       "Enabled",
		KeyConfirm:       "Confirm",
		KeyCancel:        "Cancel",
		KeyEdit:          "Edit",
		KeySubmit:        "Submit",
	},
	language.Chinese: {
		KeyManagement:    "告警实例管理",
		KeyCreate:        "新建",
		KeyDelete:        "删除告警实例",
		KeyDeleteConfirm: "确定删除该告警实例吗？",
		KeyTest:          "测试",
		KeyTestSent:      "测试消息已发送",
		KeyEmpty:         "暂无告警实例",
		KeyLoading:       "加载中...",
		KeyName:          "名称",
		KeyType:          "类型",
		KeyParams:        "参数",
		KeyEnabled:       "启用",
		KeyConfirm:       "确认",
		KeyCancel:        "取消",
		KeyEdit:          "编辑",
		KeySubmit:        "提交",
	},
}

var cat = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range messages {
		for key, msg := range msgs {
			// SetString only fails on malformed tags, which the table cannot contain.
			_ = b.SetString(tag, key, msg)
		}
	}
	return b
}

// Localizer maps message keys to display strings in one locale.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// New returns a localizer for locale ("en", "zh-CN", ...). Unknown or
// malformed locales fall back to English.
func New(locale string) *Localizer {
	tag := language.English
	if parsed, err := language.Parse(locale); err == nil {
		langs := cat.Languages()
		_, idx, conf := language.NewMatcher(langs).Match(parsed)
		if conf != language.No {
			tag = langs[idx]
		}
	}
	return &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// Tag is the matched language.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// T returns the message for key, or key itself when there is none.
func (l *Localizer) T(key string) string {
	if _, ok := messages[l.tag][key]; !ok {
		if _, ok := messages[language.English][key]; !ok {
			return key
		}
	}
	return l.printer.Sprintf(key)
}

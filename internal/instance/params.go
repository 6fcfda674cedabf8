package instance

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Params is the channel-specific configuration of an instance.
// Each alert instance type has exactly one Params variant.
type Params interface {
	Kind() Type
}

type DingTalkParams struct {
	Webhook   string   `json:"webhook" validate:"required,url"`
	Keyword   string   `json:"keyword,omitempty"`
	Secret    string   `json:"secret,omitempty"`
	AtMobiles []string `json:"atMobiles,omitempty"`
	IsAtAll   bool     `json:"isAtAll,omitempty"`
}

func (DingTalkParams) Kind() Type { return TypeDingTalk }

type WeChatParams struct {
	Webhook string   `json:"webhook" validate:"required,url"`
	Keyword string   `json:"keyword,omitempty"`
	AtUsers []string `json:"atUsers,omitempty"`
	IsAtAll bool     `json:"isAtAll,omitempty"`
}

func (WeChatParams) Kind() Type { return TypeWeChat }

type FeiShuParams struct {
	Webhook string   `json:"webhook" validate:"required,url"`
	Keyword string   `json:"keyword,omitempty"`
	Secret  string   `json:"secret,omitempty"`
	AtUsers []string `json:"atUsers,omitempty"`
	IsAtAll bool     `json:"isAtAll,omitempty"`
}

func (FeiShuParams) Kind() Type { return TypeFeiShu }

type EmailParams struct {
	ServerHost     string   `json:"serverHost" validate:"required,hostname|ip"`
	ServerPort     int      `json:"serverPort" validate:"required,min=1,max=65535"`
	Sender         string   `json:"sender" validate:"required"`
	User           string   `json:"user,omitempty"`
	Password       string   `json:"password,omitempty"`
	EnableSmtpAuth bool     `json:"enableSmtpAuth,omitempty"`
	StartTLSEnable bool     `json:"starttlsEnable,omitempty"`
	SSLEnable      bool     `json:"sslEnable,omitempty"`
	Receivers      []string `json:"receivers" validate:"required,min=1,dive,email"`
	ReceiverCcs    []string `json:"receiverCcs,omitempty" validate:"omitempty,dive,email"`
}

func (EmailParams) Kind() Type { return TypeEmail }

func (p EmailParams) check() error {
	if p.EnableSmtpAuth && p.User == "" {
		return &ValidationError{Fields: []FieldError{{Field: "user", Rule: "required_with_auth"}}}
	}
	return nil
}

type SmsParams struct {
	Manufacturers   Manufacturer `json:"manufacturers" validate:"required"`
	AccessKeyID     string       `json:"accessKeyId" validate:"required"`
	AccessKeySecret string       `json:"accessKeySecret" validate:"required"`
	SignName        string       `json:"signName,omitempty"`
	TemplateCode    string       `json:"templateCode,omitempty"`
	Endpoint        string       `json:"endpoint,omitempty" validate:"omitempty,url"`
	PhoneNumbers    []string     `json:"phoneNumbers" validate:"required,min=1,dive,required"`
}

func (SmsParams) Kind() Type { return TypeSms }

func (p SmsParams) check() error {
	var fields []FieldError
	if !p.Manufacturers.Known() {
		fields = append(fields, FieldError{Field: "manufacturers", Rule: "manufacturer"})
	}
	// Twilio has a fixed API; the other carriers go through a gateway endpoint.
	if p.Manufacturers != ManufacturerTwilio && p.Endpoint == "" {
		fields = append(fields, FieldError{Field: "endpoint", Rule: "required"})
	}
	if p.Manufacturers == ManufacturerTwilio && p.SignName == "" {
		fields = append(fields, FieldError{Field: "signName", Rule: "required"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type HttpParams struct {
	URL     string            `json:"url" validate:"required,url"`
	Method  string            `json:"method,omitempty" validate:"omitempty,oneof=GET POST PUT PATCH"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

func (HttpParams) Kind() Type { return TypeHttp }

type TelegramParams struct {
	BotToken string `json:"botToken" validate:"required"`
	ChatID   string `json:"chatId" validate:"required"`
	APIBase  string `json:"apiBase,omitempty" validate:"omitempty,url"`
}

func (TelegramParams) Kind() Type { return TypeTelegram }

// checker is implemented by variants with rules that struct tags cannot express.
type checker interface {
	check() error
}

// NewParams returns an empty Params variant for t.
func NewParams(t Type) (Params, error) {
	switch t {
	case TypeDingTalk:
		return &DingTalkParams{}, nil
	case TypeWeChat:
		return &WeChatParams{}, nil
	case TypeFeiShu:
		return &FeiShuParams{}, nil
	case TypeEmail:
		return &EmailParams{}, nil
	case TypeSms:
		return &SmsParams{}, nil
	case TypeHttp:
		return &HttpParams{Method: "POST"}, nil
	case TypeTelegram:
		return &TelegramParams{}, nil
	default:
		return nil, fmt.Errorf("unknown alert instance type %q", t)
	}
}

// DecodeParams parses a serialized params payload for the given type.
// An empty payload decodes to the zero variant.
func DecodeParams(t Type, raw string) (Params, error) {
	p, err := NewParams(t)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), p); err != nil {
		return nil, errors.Wrapf(err, "decode %s params", t)
	}
	return p, nil
}

// EncodeParams serializes p into the canonical params payload.
func EncodeParams(p Params) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrapf(err, "encode %s params", p.Kind())
	}
	return string(data), nil
}

// FieldError names a single invalid params field and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is returned when a form or params payload is rejected.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Rule))
	}
	return "invalid alert instance: " + strings.Join(parts, ", ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func paramsValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateParams checks p against its struct rules and any variant specific rules.
func ValidateParams(p Params) error {
	if p == nil {
		return &ValidationError{Fields: []FieldError{{Field: "params", Rule: "required"}}}
	}
	var fields []FieldError
	if err := paramsValidator().Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return errors.Wrap(err, "validate params")
		}
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
		}
	}
	if c, ok := p.(checker); ok {
		if err := c.check(); err != nil {
			var ve *ValidationError
			if !errors.As(err, &ve) {
				return err
			}
			fields = append(fields, ve.Fields...)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return &ValidationError{Fields: fields}
}

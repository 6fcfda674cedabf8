package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/mattmezza/alertdesk/internal/instance"
)

const defaultTwilioBaseURL = "https://api.twilio.com"

// smsMaxLength keeps test messages within a single SMS segment.
const smsMaxLength = 160

// SmsNotifier sends text messages. Twilio is called directly with the
// account SID and auth token; Alibaba and Tencent go through a gateway
// endpoint that accepts a signed JSON request.
type SmsNotifier struct {
	name   string
	params instance.SmsParams
	http   *httpSender
}

func (n *SmsNotifier) Name() string { return n.name }

func (n *SmsNotifier) Send(ctx context.Context, msg Message) error {
	text := truncate(msg.Title+": "+msg.Content, smsMaxLength)
	if n.params.Manufacturers == instance.ManufacturerTwilio {
		return n.sendTwilio(ctx, text)
	}
	return n.sendGateway(ctx, msg, text)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

func (n *SmsNotifier) sendTwilio(ctx context.Context, text string) error {
	base := n.params.Endpoint
	if base == "" {
		base = defaultTwilioBaseURL
	}
	apiURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(base, "/"), n.params.AccessKeyID)

	var failed []string
	for _, to := range n.params.PhoneNumbers {
		data := url.Values{}
		data.Set("To", to)
		data.Set("From", n.params.SignName)
		data.Set("Body", text)

		err := n.http.do(ctx, n.name, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
			if err != nil {
				return nil, err
			}
			req.SetBasicAuth(n.params.AccessKeyID, n.params.AccessKeySecret)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return req, nil
		}, nil)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", to, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("twilio: %d of %d messages failed: %s", len(failed), len(n.params.PhoneNumbers), strings.Join(failed, "; "))
	}
	return nil
}

type gatewayRequest struct {
	Manufacturer  string            `json:"manufacturer"`
	AccessKeyID   string            `json:"accessKeyId"`
	SignName      string            `json:"signName,omitempty"`
	TemplateCode  string            `json:"templateCode,omitempty"`
	PhoneNumbers  []string          `json:"phoneNumbers"`
	TemplateParam map[string]string `json:"templateParam"`
}

// gatewaySignature is the hex HMAC-SHA256 of the body keyed by the access key secret.
func gatewaySignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (n *SmsNotifier) sendGateway(ctx context.Context, msg Message, text string) error {
	body, err := json.Marshal(gatewayRequest{
		Manufacturer: n.params.Manufacturers.Label(),
		AccessKeyID:  n.params.AccessKeyID,
		SignName:     n.params.SignName,
		TemplateCode: n.params.TemplateCode,
		PhoneNumbers: n.params.PhoneNumbers,
		TemplateParam: map[string]string{
			"title":   msg.Title,
			"content": text,
		},
	})
	if err != nil {
		return errors.Wrap(err, "marshal sms gateway request")
	}
	signature := gatewaySignature(n.params.AccessKeySecret, body)
	return n.http.do(ctx, n.name, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.params.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", signature)
		return req, nil
	}, vendorCheck("sms gateway", "code", "message"))
}

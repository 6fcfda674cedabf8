package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"

	"github.com/mattmezza/alertdesk/internal/instance"
)

// now is replaced in tests to get stable signatures.
var now = time.Now

// vendorCheck returns a check that fails when the numeric field codeKey is
// present and non-zero, reporting msgKey as the reason.
func vendorCheck(vendor, codeKey, msgKey string) responseCheck {
	return func(body []byte) error {
		code, err := jsonparser.GetInt(body, codeKey)
		if err != nil || code == 0 {
			return nil
		}
		msg, _ := jsonparser.GetString(body, msgKey)
		return fmt.Errorf("%s rejected message: code %d: %s", vendor, code, msg)
	}
}

func withKeyword(keyword, text string) string {
	if keyword == "" || strings.Contains(text, keyword) {
		return text
	}
	return keyword + " " + text
}

type DingTalkNotifier struct {
	name   string
	params instance.DingTalkParams
	http   *httpSender
}

func (n *DingTalkNotifier) Name() string { return n.name }

// dingTalkSign signs a webhook call as required by robots with a secret.
func dingTalkSign(secret string, ts int64) string {
	toSign := fmt.Sprintf("%d\n%s", ts, secret)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(toSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (n *DingTalkNotifier) webhookURL() (string, error) {
	if n.params.Secret == "" {
		return n.params.Webhook, nil
	}
	u, err := url.Parse(n.params.Webhook)
	if err != nil {
		return "", errors.Wrap(err, "parse dingtalk webhook")
	}
	ts := now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", dingTalkSign(n.params.Secret, ts))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (n *DingTalkNotifier) Send(ctx context.Context, msg Message) error {
	target, err := n.webhookURL()
	if err != nil {
		return err
	}
	text := fmt.Sprintf("#### %s\n\n%s", msg.Title, msg.Content)
	for _, m := range n.params.AtMobiles {
		text += " @" + m
	}
	payload := map[string]any{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": withKeyword(n.params.Keyword, msg.Title),
			"text":  withKeyword(n.params.Keyword, text),
		},
		"at": map[string]any{
			"atMobiles": n.params.AtMobiles,
			"isAtAll":   n.params.IsAtAll,
		},
	}
	return n.http.postJSON(ctx, n.name, target, payload, vendorCheck("dingtalk", "errcode", "errmsg"))
}

type WeChatNotifier struct {
	name   string
	params instance.WeChatParams
	http   *httpSender
}

func (n *WeChatNotifier) Name() string { return n.name }

func (n *WeChatNotifier) Send(ctx context.Context, msg Message) error {
	mentioned := append([]string{}, n.params.AtUsers...)
	if n.params.IsAtAll {
		mentioned = append(mentioned, "@all")
	}
	payload := map[string]any{
		"msgtype": "text",
		"text": map[string]any{
			"content":        withKeyword(n.params.Keyword, msg.Title+"\n"+msg.Content),
			"mentioned_list": mentioned,
		},
	}
	return n.http.postJSON(ctx, n.name, n.params.Webhook, payload, vendorCheck("wechat", "errcode", "errmsg"))
}

type FeiShuNotifier struct {
	name   string
	params instance.FeiShuParams
	http   *httpSender
}

func (n *FeiShuNotifier) Name() string { return n.name }

// feiShuSign signs a webhook call; the key is the string to sign and the message is empty.
func feiShuSign(secret string, ts int64) string {
	toSign := fmt.Sprintf("%d\n%s", ts, secret)
	mac := hmac.New(sha256.New, []byte(toSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (n *FeiShuNotifier) Send(ctx context.Context, msg Message) error {
	text := msg.Title + "\n" + msg.Content
	if n.params.IsAtAll {
		text += ` <at user_id="all">all</at>`
	}
	for _, u := range n.params.AtUsers {
		text += fmt.Sprintf(` <at user_id="%s">%s</at>`, u, u)
	}
	payload := map[string]any{
		"msg_type": "text",
		"content":  map[string]string{"text": withKeyword(n.params.Keyword, text)},
	}
	if n.params.Secret != "" {
		ts := now().Unix()
		payload["timestamp"] = strconv.FormatInt(ts, 10)
		payload["sign"] = feiShuSign(n.params.Secret, ts)
	}
	return n.http.postJSON(ctx, n.name, n.params.Webhook, payload, vendorCheck("feishu", "code", "msg"))
}

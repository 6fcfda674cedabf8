package console

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattmezza/alertdesk/internal/auth"
	"github.com/mattmezza/alertdesk/internal/i18n"
	"github.com/mattmezza/alertdesk/internal/instance"
)

func TestTagText(t *testing.T) {
	testCases := []struct {
		name     string
		inst     instance.Instance
		expected string
	}{
		{"sms_with_manufacturer", smsInst, "Sms - Alibaba"},
		{"string_manufacturer", instance.Instance{Type: instance.TypeSms, Params: `{"manufacturers":"Twilio"}`}, "Sms - Twilio"},
		{"zero_manufacturer", instance.Instance{Type: instance.TypeSms, Params: `{"manufacturers":0}`}, "Sms"},
		{"no_manufacturer", mailInst, "Email"},
		{"empty_params", instance.Instance{Type: instance.TypeHttp}, "Http"},
		{"malformed_params", instance.Instance{Type: instance.TypeSms, Params: `{"manufacturers":`}, "Sms"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, TagText(tc.inst))
		})
	}
}

func TestPresent(t *testing.T) {
	long := instance.Instance{ID: 9, Name: strings.Repeat("x", 30), Type: instance.TypeTelegram, Enabled: true}
	row := Present(long, auth.AllowAll, i18n.New("en"))

	assert.Equal(t, strings.Repeat("x", 23)+"…", row.Subtitle)
	assert.Equal(t, long.Name, row.Tooltip)
	assert.Equal(t, Icon(instance.TypeTelegram), row.Icon)
	assert.Equal(t, Tag{Text: "Telegram", Color: "#5BD8A6"}, row.Tag)
	assert.True(t, row.Switch)
	assert.Equal(t, []RowAction{
		{Kind: ActionEdit, Label: "Edit", Permission: auth.PermAlertInstanceEdit},
		{Kind: ActionDelete, Label: "Delete alert instance", Permission: auth.PermAlertInstanceDelete},
	}, row.Actions)

	short := Present(mailInst, auth.AllowAll, i18n.New("en"))
	assert.Equal(t, "ops-mail", short.Subtitle)
	assert.Equal(t, unknownIcon, Icon("Pager"))
}

func TestRowsHonourPermissions(t *testing.T) {
	ctx := context.Background()
	all := []instance.Instance{mailInst, smsInst, hookInst}

	testCases := []struct {
		name     string
		authz    auth.Authorizer
		expected []ActionKind
		create   bool
	}{
		{"all_allowed", auth.AllowAll, []ActionKind{ActionEdit, ActionDelete}, true},
		{"edit_only", auth.NewStatic(auth.PermAlertInstanceEdit), []ActionKind{ActionEdit}, false},
		{"delete_only", auth.NewStatic(auth.PermAlertInstanceDelete, auth.PermAlertInstanceNew), []ActionKind{ActionDelete}, true},
		{"none", auth.DenyAll, nil, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewScreen(&fakeBackend{instances: all}, Options{Authorizer: tc.authz})
			require.NoError(t, s.Mount(ctx))
			rows := s.Rows()
			require.Len(t, rows, len(all))
			for _, row := range rows {
				var kinds []ActionKind
				for _, a := range row.Actions {
					kinds = append(kinds, a.Kind)
				}
				assert.Equal(t, tc.expected, kinds, "row %d", row.Instance.ID)
			}
			tb := s.Toolbar()
			assert.Equal(t, "Alert Instance Management", tb.Title)
			assert.Equal(t, tc.create, len(tb.Actions) == 1)
		})
	}
}

func TestToolbarLocalized(t *testing.T) {
	s := NewScreen(&fakeBackend{}, Options{Authorizer: auth.AllowAll, Localizer: i18n.New("zh")})
	tb := s.Toolbar()
	assert.Equal(t, "告警实例管理", tb.Title)
	assert.Equal(t, "新建", tb.Actions[0].Label)
}

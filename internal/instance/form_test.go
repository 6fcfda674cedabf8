package instance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	t.Run("sms_form_is_normalized", func(t *testing.T) {
		inst, err := Transform(Form{
			Name:    "  oncall sms ",
			Type:    TypeSms,
			Enabled: true,
			Params: map[string]any{
				"manufacturers":   "Alibaba",
				"accessKeyId":     "id",
				"accessKeySecret": "secret",
				"endpoint":        "https://sms.example.com/send",
				"phoneNumbers":    "+8613800000000",
				"unrelated":       "dropped",
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "oncall sms", inst.Name)
		assert.True(t, inst.IsNew())

		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(inst.Params), &payload))
		assert.Equal(t, float64(1), payload["manufacturers"])
		assert.Equal(t, []any{"+8613800000000"}, payload["phoneNumbers"])
		assert.NotContains(t, payload, "unrelated")

		label, ok := SubType(inst)
		assert.True(t, ok)
		assert.Equal(t, "Alibaba", label)
	})

	t.Run("email_port_from_string", func(t *testing.T) {
		inst, err := Transform(Form{
			ID:   4,
			Name: "mail",
			Type: TypeEmail,
			Params: map[string]any{
				"serverHost": "smtp.example.com",
				"serverPort": "587",
				"sender":     "alerts@example.com",
				"receivers":  []any{"ops@example.com"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 4, inst.ID)
		p, err := inst.DecodedParams()
		require.NoError(t, err)
		assert.Equal(t, 587, p.(*EmailParams).ServerPort)
	})

	t.Run("invalid_type", func(t *testing.T) {
		_, err := Transform(Form{Name: "x", Type: "Pager"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "type", ve.Fields[0].Field)
	})

	t.Run("missing_name_and_params", func(t *testing.T) {
		_, err := Transform(Form{Type: TypeDingTalk})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, []FieldError{
			{Field: "name", Rule: "required"},
			{Field: "webhook", Rule: "required"},
		}, ve.Fields)
		assert.Contains(t, err.Error(), "webhook: required")
	})
}

func TestFormOf(t *testing.T) {
	inst := Instance{
		ID:      9,
		Name:    "hook",
		Type:    TypeHttp,
		Enabled: true,
		Params:  `{"url":"https://hooks.example.com","method":"PUT"}`,
	}
	f, err := FormOf(inst)
	require.NoError(t, err)
	assert.Equal(t, 9, f.ID)
	assert.Equal(t, "PUT", f.Params["method"])

	back, err := Transform(f)
	require.NoError(t, err)
	assert.Equal(t, inst.ID, back.ID)
	assert.Equal(t, inst.Name, back.Name)

	_, err = FormOf(Instance{ID: 1, Type: TypeHttp, Params: "{"})
	assert.Error(t, err)
}

package payment

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseTLV splits one level of EMV fields into id -> value.
func parseTLV(t *testing.T, s string) map[string]string {
	t.Helper()
	out := map[string]string{}
	for len(s) > 0 {
		require.GreaterOrEqual(t, len(s), 4, "truncated field header in %q", s)
		n, err := strconv.Atoi(s[2:4])
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(s), 4+n, "truncated field value in %q", s)
		out[s[:2]] = s[4 : 4+n]
		s = s[4+n:]
	}
	return out
}

func TestCRC16_CheckValue(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), crc16("123456789"))
}

func TestBuildBRCode_Fields(t *testing.T) {
	payload, err := BuildBRCode("+5562998130462", "Joalheria São João Ltda Filial Centro", "Goiânia", decimal.RequireFromString("225"), "TX123ABC", "Pedido EMU123")
	require.NoError(t, err)

	fields := parseTLV(t, payload)
	assert.Equal(t, "01", fields["00"])
	assert.Equal(t, "0000", fields["52"])
	assert.Equal(t, "986", fields["53"])
	assert.Equal(t, "225.00", fields["54"])
	assert.Equal(t, "BR", fields["58"])
	assert.Equal(t, "JOALHERIA SAO JOAO LTDA F", fields["59"])
	assert.Equal(t, "GOIANIA", fields["60"])

	account := parseTLV(t, fields["26"])
	assert.Equal(t, "br.gov.bcb.pix", account["00"])
	assert.Equal(t, "+5562998130462", account["01"])
	assert.Equal(t, "Pedido EMU123", account["02"])

	assert.Equal(t, "TX123ABC", parseTLV(t, fields["62"])["05"])

	body := payload[:len(payload)-4]
	assert.True(t, strings.HasSuffix(body, "6304"))
	assert.Equal(t, fmt.Sprintf("%04X", crc16(body)), fields["63"])
}

func TestBuildBRCode_DefaultsAndLimits(t *testing.T) {
	key := strings.Repeat("k", 70)
	payload, err := BuildBRCode(key, "Loja", "Rio", decimal.RequireFromString("10.005"), "tx-with/symbols_and_a_very_long_suffix", "")
	require.NoError(t, err)

	fields := parseTLV(t, payload)
	assert.Equal(t, "10.01", fields["54"])
	assert.LessOrEqual(t, len(fields["26"]), 99)

	account := parseTLV(t, fields["26"])
	assert.Equal(t, "Pag", account["02"], "message is cut to fit the 99 char account field")

	txid := parseTLV(t, fields["62"])["05"]
	assert.Len(t, txid, 25)
	assert.Regexp(t, `^[A-Za-z0-9]+$`, txid)
}

func TestBuildBRCode_RejectsBadInput(t *testing.T) {
	cases := map[string]struct {
		key    string
		amount decimal.Decimal
	}{
		"zero":       {key: "k", amount: decimal.Zero},
		"negative":   {key: "k", amount: decimal.RequireFromString("-1")},
		"sub cent":   {key: "k", amount: decimal.RequireFromString("0.001")},
		"no key":     {key: " ", amount: decimal.RequireFromString("1")},
		"huge value": {key: "k", amount: decimal.RequireFromString("99999999999")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildBRCode(tc.key, "Loja", "Rio", tc.amount, "TX1", "m")
			var pe *PixGenerationError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestBRCodeEncoder_RendersPNG(t *testing.T) {
	enc, err := BRCodeEncoder{QRSize: 128}.Encode("chave@loja.com", "Loja", "Rio", decimal.RequireFromString("1.50"), "TX1", "")
	require.NoError(t, err)
	require.NotEmpty(t, enc.QRCodePNG)
	assert.Equal(t, []byte("\x89PNG"), enc.QRCodePNG[:4])
	assert.Contains(t, enc.Payload, "54041.50")
}

package payment

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EMV tags of a static BR Code.
const (
	tagFormat       = "00"
	tagMerchantPix  = "26"
	tagCategory     = "52"
	tagCurrency     = "53"
	tagAmount       = "54"
	tagCountry      = "58"
	tagMerchantName = "59"
	tagMerchantCity = "60"
	tagAdditional   = "62"
	tagCRC          = "63"

	pixGUI         = "br.gov.bcb.pix"
	currencyBRL    = "986"
	maxNameLen     = 25
	maxCityLen     = 15
	maxTxIDLen     = 25
	maxFieldLen    = 99
	defaultMessage = "Pagamento"
)

type EncodedPix struct {
	Payload   string
	QRCodePNG []byte
}

// PixEncoder renders a PIX charge into its copy-and-paste payload and QR image.
type PixEncoder interface {
	Encode(key, name, city string, amount decimal.Decimal, txid, message string) (EncodedPix, error)
}

// BRCodeEncoder builds static BR Code payloads as published by the Banco
// Central do Brasil and renders them with go-qrcode.
type BRCodeEncoder struct {
	// QRSize is the PNG edge in pixels; 256 when zero.
	QRSize int
}

func (e BRCodeEncoder) Encode(key, name, city string, amount decimal.Decimal, txid, message string) (EncodedPix, error) {
	payload, err := BuildBRCode(key, name, city, amount, txid, message)
	if err != nil {
		return EncodedPix{}, err
	}
	size := e.QRSize
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return EncodedPix{}, &PixGenerationError{Reason: "render qr code", Err: err}
	}
	return EncodedPix{Payload: payload, QRCodePNG: png}, nil
}

// BuildBRCode returns the EMV payload string, CRC included.
func BuildBRCode(key, name, city string, amount decimal.Decimal, txid, message string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", &PixGenerationError{Reason: "missing pix key"}
	}
	amt := amount.Round(2)
	if !amt.IsPositive() {
		return "", &PixGenerationError{Reason: fmt.Sprintf("amount must be positive, got %s", amount.String())}
	}
	amtStr := amt.StringFixed(2)
	if len(amtStr) > 13 {
		return "", &PixGenerationError{Reason: "amount too large"}
	}

	name = truncate(strings.ToUpper(asciiFold(name)), maxNameLen)
	city = truncate(strings.ToUpper(asciiFold(city)), maxCityLen)
	if name == "" || city == "" {
		return "", &PixGenerationError{Reason: "merchant name and city are required"}
	}

	txid = alnum(txid)
	if txid == "" {
		txid = "***"
	}
	txid = truncate(txid, maxTxIDLen)

	message = asciiFold(message)
	if message == "" {
		message = defaultMessage
	}

	gui := tlv("00", pixGUI)
	keyField := tlv("01", key)
	account := gui + keyField
	if room := maxFieldLen - len(account) - 4; room > 0 {
		account += tlv("02", truncate(message, room))
	}
	if len(account) > maxFieldLen {
		return "", &PixGenerationError{Reason: "pix key too long"}
	}

	var b strings.Builder
	b.WriteString(tlv(tagFormat, "01"))
	b.WriteString(tlv(tagMerchantPix, account))
	b.WriteString(tlv(tagCategory, "0000"))
	b.WriteString(tlv(tagCurrency, currencyBRL))
	b.WriteString(tlv(tagAmount, amtStr))
	b.WriteString(tlv(tagCountry, "BR"))
	b.WriteString(tlv(tagMerchantName, name))
	b.WriteString(tlv(tagMerchantCity, city))
	b.WriteString(tlv(tagAdditional, tlv("05", txid)))
	b.WriteString(tagCRC + "04")
	b.WriteString(fmt.Sprintf("%04X", crc16(b.String())))
	return b.String(), nil
}

func tlv(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// crc16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF).
func crc16(s string) uint16 {
	crc := uint16(0xFFFF)
	for i := 0; i < len(s); i++ {
		crc ^= uint16(s[i]) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// asciiFold strips accents and drops anything outside printable ASCII.
func asciiFold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range folded {
		if r >= 0x20 && r < 0x7F {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

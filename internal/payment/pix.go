package payment

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/google/uuid"
)

type PixConfig struct {
	Key          string
	MerchantName string
	MerchantCity string
	Expiry       time.Duration
}

type PixGenerator struct {
	cfg     PixConfig
	encoder PixEncoder
	now     func() time.Time
	txID    func(time.Time) string
}

func NewPixGenerator(cfg PixConfig, enc PixEncoder) *PixGenerator {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 30 * time.Minute
	}
	if enc == nil {
		enc = BRCodeEncoder{}
	}
	return &PixGenerator{cfg: cfg, encoder: enc, now: time.Now, txID: NewTransactionID}
}

func (g *PixGenerator) Method() orders.PaymentMethod { return orders.MethodPix }

func (g *PixGenerator) Generate(_ context.Context, req Request) (Instrument, error) {
	if !req.Amount.Round(2).IsPositive() {
		return Instrument{}, &PixGenerationError{Reason: "amount must be positive, got " + req.Amount.String()}
	}
	now := g.now()
	txid := g.txID(now)

	enc, err := g.encoder.Encode(g.cfg.Key, g.cfg.MerchantName, g.cfg.MerchantCity, req.Amount, txid, req.Description)
	if err != nil {
		return Instrument{}, err
	}
	exp := now.Add(g.cfg.Expiry)
	return Instrument{
		Method:           orders.MethodPix,
		PixCode:          enc.Payload,
		PixQRCode:        "data:image/png;base64," + base64.StdEncoding.EncodeToString(enc.QRCodePNG),
		PixTransactionID: txid,
		ExpiresAt:        &exp,
	}, nil
}

// NewTransactionID is "TX", the base36 millisecond clock and 12 random hex
// digits: 22 alphanumerics, under the 25 allowed in tag 62-05.
func NewTransactionID(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	rnd := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return truncate("TX"+ts+rnd, maxTxIDLen)
}

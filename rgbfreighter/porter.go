package rgbfreighter

import (
	"context"
	"crypto/rand"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/lightninglabs/rgbwallet/bpwallet"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/clock"
)

// PorterConfig holds the dependencies of the Porter.
type PorterConfig struct {
	// Clock is used to check the expiry of invoices.
	Clock clock.Clock

	// Entropy returns the entropy blinding the positions of the bundles
	// in the multi protocol commitment of a new transfer. Defaults to
	// random entropy.
	Entropy func() (uint64, error)
}

// Porter composes and finalizes transfers. It doesn't keep any state of its
// own: the wallet and the inventory are passed to every call and are owned
// by the caller, who must serialize calls using the same wallet or
// inventory.
type Porter struct {
	cfg *PorterConfig
}

// NewPorter creates a new Porter, filling in defaults for missing config
// values.
func NewPorter(cfg *PorterConfig) *Porter {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Entropy == nil {
		cfg.Entropy = randEntropy
	}

	return &Porter{
		cfg: cfg,
	}
}

// randEntropy returns 8 random bytes as an integer.
func randEntropy() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b[:]), nil
}

// Pay composes a transfer paying the invoices and finalizes it right away.
// This is only useful if the wallet doesn't need any external signer to
// complete the PSBT. The returned error is either a *CompositionError or a
// *CompletionError.
func (p *Porter) Pay(ctx context.Context, wallet WalletAnchor,
	stock inventory.Inventory, invoices []*invoice.Invoice,
	method dbc.Method, params TransferParams) (*psbt.Packet,
	*bpwallet.PsbtMeta, []*rgbstd.Transfer, error) {

	pkt, meta, err := p.ConstructPsbt(
		ctx, wallet, stock, invoices, method, params,
	)
	if err != nil {
		return nil, nil, nil, err
	}

	transfers, err := p.Transfer(ctx, wallet, stock, invoices, pkt)
	if err != nil {
		return nil, nil, nil, err
	}

	return pkt, meta, transfers, nil
}

package rgbwallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/lightninglabs/rgbwallet/bpwallet"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/invoice"
	"github.com/lightninglabs/rgbwallet/rgbcfg"
	"github.com/lightninglabs/rgbwallet/rgbdb"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
	"github.com/lightninglabs/rgbwallet/rgbfreighter"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrNoDescriptor is returned when opening a wallet that was never
	// created without passing a descriptor.
	ErrNoDescriptor = errors.New("no wallet descriptor stored or given")

	// ErrDescriptorMismatch is returned when the given descriptor doesn't
	// match the stored one.
	ErrDescriptorMismatch = errors.New("descriptor doesn't match stored " +
		"wallet descriptor")
)

// DescriptorStore persists the tapret tweaks of wallet descriptors.
type DescriptorStore interface {
	// AddTapretTweak persists the tapret commitment of the terminal of
	// the named descriptor.
	AddTapretTweak(ctx context.Context, name string,
		terminal rgbdescr.Terminal,
		commitment dbc.TapretCommitment) error
}

// A compile-time assertion to make sure the sqlite store can persist tweaks.
var _ DescriptorStore = (*rgbdb.SqliteStore)(nil)

// RuntimeConfig holds the dependencies of the runtime.
type RuntimeConfig struct {
	// Wallet funds witness transactions and owns the seals.
	Wallet *bpwallet.Wallet

	// WalletName is the name the wallet descriptor is stored under.
	WalletName string

	// Stock is the inventory holding the contract state.
	Stock inventory.Inventory

	// Store persists the tweaks added to the wallet descriptor. Without a
	// store tweaks are only kept in memory.
	Store fn.Option[DescriptorStore]

	// Clock is used to check the expiry of invoices.
	Clock clock.Clock

	// Entropy overrides the entropy of new transfers, used in tests.
	Entropy func() (uint64, error)

	// TransferParams are the default parameters of transfers.
	TransferParams rgbfreighter.TransferParams
}

// Runtime pays RGB invoices from a single wallet and inventory.
type Runtime struct {
	cfg *RuntimeConfig

	porter *rgbfreighter.Porter

	// mu serializes all calls since the wallet descriptor and the
	// inventory can only be updated by one transfer at a time.
	mu sync.Mutex
}

// NewRuntime creates a new runtime from the given config.
func NewRuntime(cfg *RuntimeConfig) *Runtime {
	return &Runtime{
		cfg: cfg,
		porter: rgbfreighter.NewPorter(&rgbfreighter.PorterConfig{
			Clock:   cfg.Clock,
			Entropy: cfg.Entropy,
		}),
	}
}

// persistingWallet is the runtime wallet that writes every tweak to the
// descriptor store before adding it to the in-memory descriptor.
type persistingWallet struct {
	*bpwallet.Wallet

	ctx   context.Context
	store DescriptorStore
	name  string
}

// AddTapretTweak persists the tweak and records it in the descriptor.
func (w *persistingWallet) AddTapretTweak(terminal rgbdescr.Terminal,
	commitment dbc.TapretCommitment) error {

	err := w.store.AddTapretTweak(w.ctx, w.name, terminal, commitment)
	if err != nil {
		return err
	}

	return w.Wallet.AddTapretTweak(terminal, commitment)
}

// walletAnchor returns the wallet transfers are anchored with. Tweaks are
// persisted if the runtime has a descriptor store.
func (r *Runtime) walletAnchor(
	ctx context.Context) rgbfreighter.WalletAnchor {

	withStore := fn.MapOption(
		func(s DescriptorStore) rgbfreighter.WalletAnchor {
			return &persistingWallet{
				Wallet: r.cfg.Wallet,
				ctx:    ctx,
				store:  s,
				name:   r.cfg.WalletName,
			}
		},
	)

	return withStore(r.cfg.Store).UnwrapOr(r.cfg.Wallet)
}

// Wallet returns the wallet of the runtime.
func (r *Runtime) Wallet() *bpwallet.Wallet {
	return r.cfg.Wallet
}

// TransferParams returns the default transfer parameters.
func (r *Runtime) TransferParams() rgbfreighter.TransferParams {
	return r.cfg.TransferParams
}

// ConstructPsbt composes a transfer paying the invoices. The returned PSBT
// must be signed and then passed to Transfer.
func (r *Runtime) ConstructPsbt(ctx context.Context,
	invoices []*invoice.Invoice, method dbc.Method,
	params rgbfreighter.TransferParams) (*psbt.Packet, *bpwallet.PsbtMeta,
	error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.porter.ConstructPsbt(
		ctx, r.walletAnchor(ctx), r.cfg.Stock, invoices, method, params,
	)
}

// Transfer finalizes a transfer composed by ConstructPsbt. On success the
// witness transaction is applied to the wallet, so its change output can be
// spent right away. A tapret tweak stays persisted if the inventory fails to
// consume the transfer afterwards, so a retry with the same PSBT fails with
// ErrMultipleTweaks.
func (r *Runtime) Transfer(ctx context.Context, invoices []*invoice.Invoice,
	pkt *psbt.Packet) ([]*rgbstd.Transfer, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.transfer(ctx, invoices, pkt)
}

// transfer finalizes the transfer. The caller must hold the mutex.
func (r *Runtime) transfer(ctx context.Context, invoices []*invoice.Invoice,
	pkt *psbt.Packet) ([]*rgbstd.Transfer, error) {

	transfers, err := r.porter.Transfer(
		ctx, r.walletAnchor(ctx), r.cfg.Stock, invoices, pkt,
	)
	if err != nil {
		return nil, err
	}

	added := r.cfg.Wallet.ApplyTransaction(pkt.UnsignedTx)
	log.Debugf("Witness tx %v added %d wallet coins",
		pkt.UnsignedTx.TxHash(), len(added))

	return transfers, nil
}

// Pay composes and finalizes a transfer paying the invoices in one go, using
// the default transfer parameters.
func (r *Runtime) Pay(ctx context.Context, invoices []*invoice.Invoice,
	method dbc.Method) (*psbt.Packet, *bpwallet.PsbtMeta,
	[]*rgbstd.Transfer, error) {

	r.mu.Lock()
	defer r.mu.Unlock()

	pkt, meta, err := r.porter.ConstructPsbt(
		ctx, r.walletAnchor(ctx), r.cfg.Stock, invoices, method,
		r.cfg.TransferParams,
	)
	if err != nil {
		return nil, nil, nil, err
	}

	transfers, err := r.transfer(ctx, invoices, pkt)
	if err != nil {
		return nil, nil, nil, err
	}

	log.Infof("Paid %d invoices with witness tx %v", len(invoices),
		pkt.UnsignedTx.TxHash())

	return pkt, meta, transfers, nil
}

// loadDescriptor fetches the named descriptor from the store, storing the
// given one first if the wallet is new.
func loadDescriptor(ctx context.Context, store *rgbdb.SqliteStore,
	name, descriptor string) (*rgbdescr.RgbDescr, error) {

	descr, err := store.FetchDescriptor(ctx, name)
	switch {
	case errors.Is(err, rgbdb.ErrDescriptorNotFound):
		if descriptor == "" {
			return nil, ErrNoDescriptor
		}

		descr, err = rgbdescr.ParseRgbDescr(descriptor)
		if err != nil {
			return nil, err
		}
		if err := store.StoreDescriptor(ctx, name, descr); err != nil {
			return nil, err
		}

		log.Infof("Created wallet %v with descriptor %v", name, descr)

		return descr, nil

	case err != nil:
		return nil, err
	}

	if descriptor == "" {
		return descr, nil
	}

	given, err := rgbdescr.ParseRgbDescr(descriptor)
	if err != nil {
		return nil, err
	}
	if given.String() != descr.String() {
		return nil, fmt.Errorf("%w: %v", ErrDescriptorMismatch, name)
	}

	return descr, nil
}

// OpenRuntime opens the wallet database of the config and creates a runtime
// for the stored wallet. The returned runtime must be closed with Close.
func OpenRuntime(ctx context.Context, cfg *rgbcfg.Config,
	stock inventory.Inventory) (*Runtime, error) {

	store, err := rgbdb.NewSqliteStore(cfg.Sqlite, clock.NewDefaultClock())
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	descr, err := loadDescriptor(
		ctx, store, cfg.Wallet.Name, cfg.Wallet.Descriptor,
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("unable to load wallet %v: %w",
			cfg.Wallet.Name, err)
	}

	return NewRuntime(&RuntimeConfig{
		Wallet:     bpwallet.NewWallet(descr, &cfg.ActiveNetParams),
		WalletName: cfg.Wallet.Name,
		Stock:      stock,
		Store:      fn.Some[DescriptorStore](store),
		TransferParams: rgbfreighter.NewTransferParams(
			btcutil.Amount(cfg.Wallet.FeeRate),
			btcutil.Amount(cfg.Wallet.MinAmount),
		),
	}), nil
}

// Close releases the descriptor store of the runtime if it owns one.
func (r *Runtime) Close() error {
	var err error
	r.cfg.Store.WhenSome(func(s DescriptorStore) {
		if closer, ok := s.(interface{ Close() error }); ok {
			err = closer.Close()
		}
	})

	return err
}

package bpwallet

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightninglabs/rgbwallet/dbc"
	"github.com/lightninglabs/rgbwallet/rgbdescr"
	"github.com/lightninglabs/rgbwallet/rgbstd"
)

var (
	// ErrUnknownCoin is returned when an outpoint that isn't owned by the
	// wallet should be spent.
	ErrUnknownCoin = errors.New("outpoint not owned by wallet")

	// ErrDuplicateCoin is returned when a coin is added twice.
	ErrDuplicateCoin = errors.New("coin already known")

	// ErrMissingFeeRate is returned when no fee rate is given.
	ErrMissingFeeRate = errors.New("missing fee rate")

	// ErrNoBeneficiaries is returned when a transaction without any
	// beneficiary and without any input is requested.
	ErrNoBeneficiaries = errors.New("no beneficiaries and no inputs")
)

// Coin is an unspent output owned by the wallet.
type Coin struct {
	wire.TxOut

	wire.OutPoint

	// Terminal is the terminal the output script was derived at.
	Terminal rgbdescr.Terminal
}

// Wallet is a single descriptor wallet holding the coins derived from it. It
// constructs the witness transactions of transfers.
type Wallet struct {
	mu sync.RWMutex

	descr  *rgbdescr.RgbDescr
	params *chaincfg.Params

	coins map[wire.OutPoint]*Coin

	// scripts maps every output script handed out by the wallet to the
	// terminal it was derived at.
	scripts map[string]rgbdescr.Terminal

	// nextIndex is the next unused index of each keychain.
	nextIndex map[rgbdescr.Keychain]uint32
}

// NewWallet creates a wallet without coins for the given descriptor. The
// terminals of tweaks already recorded in the descriptor count as used, so
// new scripts are only derived past them.
func NewWallet(descr *rgbdescr.RgbDescr, params *chaincfg.Params) *Wallet {
	w := &Wallet{
		descr:     descr,
		params:    params,
		coins:     make(map[wire.OutPoint]*Coin),
		scripts:   make(map[string]rgbdescr.Terminal),
		nextIndex: make(map[rgbdescr.Keychain]uint32),
	}

	tapretKey, ok := descr.TapretKey()
	if !ok {
		return w
	}

	for _, tweak := range tapretKey.Tweaks() {
		t := tweak.Terminal
		if next := w.nextIndex[t.Keychain]; t.Index >= next {
			w.nextIndex[t.Keychain] = t.Index + 1
		}

		derived, err := descr.Derive(t.Keychain, t.Index)
		if err != nil {
			log.Warnf("Unable to derive tweaked terminal %v: %v",
				t, err)
			continue
		}
		w.registerScript(derived)
	}

	return w
}

// Descriptor returns the descriptor of the wallet.
func (w *Wallet) Descriptor() *rgbdescr.RgbDescr {
	return w.descr
}

// Params returns the chain params of the wallet.
func (w *Wallet) Params() *chaincfg.Params {
	return w.params
}

// SealCloseMethod returns the method seals on wallet outputs are closed with.
func (w *Wallet) SealCloseMethod() dbc.Method {
	return w.descr.SealCloseMethod()
}

// registerScript remembers the script derived at the terminal. The caller
// must hold the write lock.
func (w *Wallet) registerScript(derived *rgbdescr.DerivedScript) {
	w.scripts[string(derived.PkScript)] = derived.Terminal

	t := derived.Terminal
	if next := w.nextIndex[t.Keychain]; t.Index >= next {
		w.nextIndex[t.Keychain] = t.Index + 1
	}
}

// peekNext derives the script at the next unused index of the keychain
// without marking it as used. Terminals that already carry a tapret tweak are
// skipped. The caller must hold the lock.
func (w *Wallet) peekNext(
	keychain rgbdescr.Keychain) (*rgbdescr.DerivedScript, error) {

	index := w.nextIndex[keychain]
	if tapretKey, ok := w.descr.TapretKey(); ok {
		for tapretKey.Tweak(rgbdescr.Terminal{
			Keychain: keychain,
			Index:    index,
		}).IsSome() {

			index++
		}
	}

	return w.descr.Derive(keychain, index)
}

// NextScript derives the output script at the next unused index of the
// keychain and marks the index as used.
func (w *Wallet) NextScript(
	keychain rgbdescr.Keychain) (*rgbdescr.DerivedScript, error) {

	w.mu.Lock()
	defer w.mu.Unlock()

	derived, err := w.peekNext(keychain)
	if err != nil {
		return nil, err
	}
	w.registerScript(derived)

	log.Debugf("Derived script at %v", derived.Terminal)

	return derived, nil
}

// NextAddress returns the address of the next unused index of the keychain.
func (w *Wallet) NextAddress(keychain rgbdescr.Keychain) (btcutil.Address,
	error) {

	derived, err := w.NextScript(keychain)
	if err != nil {
		return nil, err
	}

	return scriptAddress(derived, w.params)
}

// OutputSeal returns the seal defined on the given wallet outpoint, closed
// with the method of the descriptor.
func (w *Wallet) OutputSeal(op wire.OutPoint) rgbstd.OutputSeal {
	return rgbstd.NewOutputSeal(w.descr.SealCloseMethod(), op)
}

// AddCoin adds an unspent output derived at the given terminal to the wallet.
func (w *Wallet) AddCoin(op wire.OutPoint, value btcutil.Amount,
	terminal rgbdescr.Terminal) error {

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.coins[op]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateCoin, op)
	}

	derived, err := w.descr.Derive(terminal.Keychain, terminal.Index)
	if err != nil {
		return err
	}
	w.registerScript(derived)

	w.coins[op] = &Coin{
		TxOut:    *wire.NewTxOut(int64(value), derived.PkScript),
		OutPoint: op,
		Terminal: terminal,
	}

	log.Debugf("Added coin %v of %v at %v", op, value, terminal)

	return nil
}

// Coin returns the coin with the given outpoint.
func (w *Wallet) Coin(op wire.OutPoint) (Coin, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	coin, ok := w.coins[op]
	if !ok {
		return Coin{}, false
	}

	return *coin, true
}

// Coins returns all coins of the wallet ordered by outpoint.
func (w *Wallet) Coins() []Coin {
	w.mu.RLock()
	defer w.mu.RUnlock()

	coins := make([]Coin, 0, len(w.coins))
	for _, coin := range w.coins {
		coins = append(coins, *coin)
	}
	sort.Slice(coins, func(i, j int) bool {
		return outpointLess(coins[i].OutPoint, coins[j].OutPoint)
	})

	return coins
}

// Balance returns the sum of all coins.
func (w *Wallet) Balance() btcutil.Amount {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var total btcutil.Amount
	for _, coin := range w.coins {
		total += btcutil.Amount(coin.Value)
	}

	return total
}

// IncludeOutpoint returns true if the outpoint is a coin of the wallet. This
// makes the wallet usable as the ownership filter of state queries.
func (w *Wallet) IncludeOutpoint(op wire.OutPoint) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.coins[op]
	return ok
}

// AddTapretTweak records the tapret commitment of a terminal in the
// descriptor. The terminal's script changes to the committed one, so it is
// registered again to recognize outputs paying to it.
func (w *Wallet) AddTapretTweak(terminal rgbdescr.Terminal,
	commitment dbc.TapretCommitment) error {

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.descr.AddTapretTweak(terminal, commitment); err != nil {
		return err
	}

	derived, err := w.descr.Derive(terminal.Keychain, terminal.Index)
	if err != nil {
		return err
	}
	w.registerScript(derived)

	log.Infof("Added tapret tweak %v at %v", commitment, terminal)

	return nil
}

// ApplyTransaction removes the coins spent by the transaction and adds its
// outputs paying to scripts of the wallet. It returns the added coins.
func (w *Wallet) ApplyTransaction(tx *wire.MsgTx) []Coin {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, txIn := range tx.TxIn {
		delete(w.coins, txIn.PreviousOutPoint)
	}

	txid := tx.TxHash()

	var added []Coin
	for idx, txOut := range tx.TxOut {
		terminal, ok := w.scripts[string(txOut.PkScript)]
		if !ok {
			continue
		}

		coin := &Coin{
			TxOut:    *txOut,
			OutPoint: wire.OutPoint{Hash: txid, Index: uint32(idx)},
			Terminal: terminal,
		}
		w.coins[coin.OutPoint] = coin
		added = append(added, *coin)
	}

	log.Debugf("Applied tx %v: spent %d inputs, added %d coins", txid,
		len(tx.TxIn), len(added))

	return added
}

// outpointLess orders outpoints by txid and output index.
func outpointLess(a, b wire.OutPoint) bool {
	return rgbstd.NewOutputSeal(0, a).Less(rgbstd.NewOutputSeal(0, b))
}

package invoice

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightninglabs/rgbwallet/rgbstd"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

func testAddress(t *testing.T, params *chaincfg.Params) btcutil.Address {
	t.Helper()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	addr, err := btcutil.NewAddressTaproot(
		schnorr.SerializePubKey(privKey.PubKey()), params,
	)
	require.NoError(t, err)

	return addr
}

// TestInvoiceExpiry tests the expiry check of invoices.
func TestInvoiceExpiry(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)

	testCases := []struct {
		name    string
		expiry  fn.Option[time.Time]
		expired bool
	}{{
		name:   "no expiry",
		expiry: fn.None[time.Time](),
	}, {
		name:   "future expiry",
		expiry: fn.Some(now.Add(time.Hour)),
	}, {
		name:    "past expiry",
		expiry:  fn.Some(now.Add(-time.Second)),
		expired: true,
	}}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv := &Invoice{Expiry: tc.expiry}
			require.Equal(t, tc.expired, inv.IsExpired(now))
		})
	}
}

// TestInvoiceValidate tests the beneficiary validation of invoices.
func TestInvoiceValidate(t *testing.T) {
	t.Parallel()

	regtest := &chaincfg.RegressionNetParams
	addr := testAddress(t, regtest)

	inv := &Invoice{
		State:       AmountState(50),
		Beneficiary: NewWitnessBeneficiary(addr),
		Network:     regtest,
	}
	require.NoError(t, inv.Validate())

	pkScript, err := inv.Beneficiary.PkScript()
	require.NoError(t, err)
	require.Len(t, pkScript, 34)

	inv.Network = &chaincfg.MainNetParams
	require.ErrorIs(t, inv.Validate(), ErrWrongNetwork)

	inv.Beneficiary = NewBlindedBeneficiary(rgbstd.SecretSeal{1})
	require.NoError(t, inv.Validate())

	_, err = inv.Beneficiary.PkScript()
	require.ErrorIs(t, err, ErrNoBeneficiary)

	require.Equal(t, StateAmount, inv.State.Kind)
	require.Equal(t, "amount", inv.State.Kind.String())
}

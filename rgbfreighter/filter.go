package rgbfreighter

import (
	"context"
	"fmt"

	"github.com/lightninglabs/rgbwallet/inventory"
	"github.com/lightninglabs/rgbwallet/rgbstd"
)

// ContractOutpointsFilter returns a filter that only includes outpoints that
// are owned by the wallet and hold state of the given contract.
func ContractOutpointsFilter(ctx context.Context,
	wallet inventory.OutpointFilter, stock inventory.Inventory,
	id rgbstd.ContractID) (inventory.OutpointFilter, error) {

	outpoints, err := stock.ContractOutpoints(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch outpoints of contract "+
			"%v: %w", id, err)
	}

	return inventory.AndFilter(wallet, inventory.SetFilter(outpoints)), nil
}

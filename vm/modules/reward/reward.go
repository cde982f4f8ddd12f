// Package reward turns player scores into freshly minted tokens.
package reward

import (
	"encoding/json"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/vm/modules/token"
)

// Score tiers. Upper bounds are inclusive.
const (
	lowTierMax = 10
	midTierMax = 50

	lowTierRate  = 3
	midTierRate  = 5
	highTierRate = 10
)

func init() {
	vm.Register(core.TxDistributeRewards, handleDistribute)
}

// RewardFor returns the reward earned by score.
func RewardFor(score uint64) *uint256.Int {
	var rate uint64
	switch {
	case score <= lowTierMax:
		rate = lowTierRate
	case score <= midTierMax:
		rate = midTierRate
	default:
		rate = highTierRate
	}
	return new(uint256.Int).Mul(uint256.NewInt(score), uint256.NewInt(rate))
}

// Summary describes one distribution round.
type Summary struct {
	Total   *uint256.Int
	Players uint64
}

// Distribute mints every enumerated player's reward in registration order.
// Suspended players are paid too and scores are left untouched. Owner only.
func Distribute(ctx *vm.Context) (*Summary, error) {
	if err := ctx.OnlyOwner(); err != nil {
		return nil, err
	}
	n, err := ctx.State.PlayerCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, vm.ErrNoPlayers
	}

	total := new(uint256.Int)
	for i := uint64(0); i < n; i++ {
		addr, err := ctx.State.PlayerAt(i)
		if err != nil {
			return nil, err
		}
		p, err := ctx.State.GetPlayer(addr)
		if err != nil {
			return nil, err
		}
		amount := RewardFor(p.Score)
		if err := token.Mint(ctx, addr, amount); err != nil {
			return nil, err
		}
		if _, overflow := total.AddOverflow(total, amount); overflow {
			return nil, vm.ErrOverflow
		}
	}

	ctx.Emit(events.EventRewardDistributed, map[string]any{
		"total_rewards":     total.Dec(),
		"number_of_players": n,
	})
	return &Summary{Total: total, Players: n}, nil
}

func handleDistribute(ctx *vm.Context, _ json.RawMessage) error {
	_, err := Distribute(ctx)
	return err
}

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/indexer"
	"github.com/tolelom/degenchain/journal"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/vm/modules/player"
	"github.com/tolelom/degenchain/vm/modules/store"
	"github.com/tolelom/degenchain/vm/modules/token"
)

const queryTimeout = 5 * time.Second

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	exec    *vm.Executor
	indexer *indexer.Indexer
	journal *journal.Journal // nil disables getEvents
	chainID string           // used to reject cross-chain replay transactions
}

// NewHandler creates an RPC Handler.
func NewHandler(
	bc *core.Blockchain,
	mempool *core.Mempool,
	exec *vm.Executor,
	idx *indexer.Indexer,
	jrnl *journal.Journal,
	chainID string,
) *Handler {
	return &Handler{bc: bc, mempool: mempool, exec: exec, indexer: idx, journal: jrnl, chainID: chainID}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.bc.Height())
	case "getBlock":
		return h.getBlock(req)
	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Size())
	case "sendTx":
		return h.sendTx(req)
	case "simulateTx":
		return h.simulateTx(req)
	case "getNonce":
		return h.getNonce(req)

	case "getTokenInfo":
		return h.getTokenInfo(req)
	case "getTotalSupply":
		return h.getTotalSupply(req)
	case "getBalance":
		return h.getBalance(req)
	case "checkBalance":
		return h.checkBalance(req)
	case "getAllowance":
		return h.getAllowance(req)
	case "getOwner":
		return h.getOwner(req)

	case "getPlayer":
		return h.getPlayer(req)
	case "getPlayers":
		return h.getPlayers(req)

	case "getProp":
		return h.getProp(req)
	case "getOwnedProp":
		return h.getOwnedProp(req)
	case "propId":
		return h.propID(req)

	case "getPropsByOwner":
		return h.getPropsByOwner(req)
	case "getTransfersByAddress":
		return h.getTransfersByAddress(req)
	case "getEvents":
		return h.getEvents(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// decode unmarshals params, treating absent params as an empty object.
func decode(req Request, v any) error {
	if len(req.Params) == 0 || string(req.Params) == "null" {
		return nil
	}
	return json.Unmarshal(req.Params, v)
}

func invalid(req Request, err error) Response {
	return errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
}

// ---- chain ----

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if block == nil {
		return errResponse(req.ID, CodeInternalError, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) decodeTx(req Request) (*core.Transaction, *Response) {
	var tx core.Transaction
	if err := json.Unmarshal(req.Params, &tx); err != nil {
		resp := invalid(req, err)
		return nil, &resp
	}
	if tx.ChainID != h.chainID {
		resp := errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("chain ID mismatch: got %q want %q", tx.ChainID, h.chainID))
		return nil, &resp
	}
	if !vm.Supported(tx.Type) {
		resp := errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("unsupported tx type %q", tx.Type))
		return nil, &resp
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	return &tx, nil
}

func (h *Handler) sendTx(req Request) Response {
	tx, resp := h.decodeTx(req)
	if resp != nil {
		return *resp
	}
	if err := h.mempool.Add(tx); err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}

// simulateTx dry-runs a transaction against the latest state and reports
// the contract error it would fail with.
func (h *Handler) simulateTx(req Request) Response {
	tx, resp := h.decodeTx(req)
	if resp != nil {
		return *resp
	}
	height, prevHash := h.bc.Next()
	block := core.NewBlock(height, prevHash, "", nil)
	if err := h.exec.Simulate(block, tx); err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, map[string]any{"tx_id": tx.ID, "ok": true})
}

func (h *Handler) getNonce(req Request) Response {
	var params struct {
		Address core.Address `json:"address"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	if params.Address.IsZero() {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	var nonce uint64
	err := h.exec.View(func(s core.State) (err error) {
		nonce, err = s.GetNonce(params.Address)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "nonce": nonce})
}

// ---- ledger ----

func (h *Handler) getTokenInfo(req Request) Response {
	var info *core.TokenInfo
	err := h.exec.View(func(s core.State) (err error) {
		info, err = token.Info(s)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, info)
}

func (h *Handler) getTotalSupply(req Request) Response {
	var supply *uint256.Int
	err := h.exec.View(func(s core.State) (err error) {
		supply, err = token.TotalSupply(s)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, supply.Dec())
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address core.Address `json:"address"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	var bal *uint256.Int
	err := h.exec.View(func(s core.State) (err error) {
		bal, err = token.BalanceOf(s, params.Address)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "balance": bal.Dec()})
}

// checkBalance reports the balance of the account behind a public key, the
// read a wallet issues for itself.
func (h *Handler) checkBalance(req Request) Response {
	var params struct {
		From string `json:"from"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	caller, err := core.AddressFromPubKey(params.From)
	if err != nil {
		return invalid(req, err)
	}
	var bal *uint256.Int
	err = h.exec.View(func(s core.State) (err error) {
		bal, err = player.CheckBalance(s, caller)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": caller, "balance": bal.Dec()})
}

func (h *Handler) getAllowance(req Request) Response {
	var params struct {
		Owner   core.Address `json:"owner"`
		Spender core.Address `json:"spender"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	var v *uint256.Int
	err := h.exec.View(func(s core.State) (err error) {
		v, err = token.Allowance(s, params.Owner, params.Spender)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{
		"owner":     params.Owner,
		"spender":   params.Spender,
		"allowance": v.Dec(),
	})
}

func (h *Handler) getOwner(req Request) Response {
	var owner core.Address
	err := h.exec.View(func(s core.State) (err error) {
		owner, err = s.GetOwner()
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"owner": owner, "contract": h.exec.Self()})
}

// ---- players ----

func (h *Handler) getPlayer(req Request) Response {
	var params struct {
		Address core.Address `json:"address"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	var p *core.Player
	err := h.exec.View(func(s core.State) (err error) {
		p, err = player.Get(s, params.Address)
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, p)
}

func (h *Handler) getPlayers(req Request) Response {
	var players []*core.Player
	err := h.exec.View(func(s core.State) (err error) {
		players, err = player.All(s)
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if players == nil {
		players = []*core.Player{}
	}
	return okResponse(req.ID, players)
}

// ---- store ----

func (h *Handler) getProp(req Request) Response {
	var params struct {
		ID core.PropID `json:"id"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	var prop *core.GameProp
	err := h.exec.View(func(s core.State) (err error) {
		prop, err = store.Get(s, params.ID)
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, prop)
}

func (h *Handler) getOwnedProp(req Request) Response {
	var params struct {
		Owner core.Address `json:"owner"`
		ID    core.PropID  `json:"id"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	var prop *core.GameProp
	err := h.exec.View(func(s core.State) (err error) {
		prop, err = store.Owned(s, params.Owner, params.ID)
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, prop)
}

func (h *Handler) propID(req Request) Response {
	var params struct {
		Name  string       `json:"name"`
		Worth *uint256.Int `json:"worth"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	if params.Worth == nil {
		return errResponse(req.ID, CodeInvalidParams, "worth is required")
	}
	return okResponse(req.ID, store.PropID(params.Name, params.Worth))
}

// ---- indexes ----

func (h *Handler) getPropsByOwner(req Request) Response {
	var params struct {
		Owner core.Address `json:"owner"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	if params.Owner.IsZero() {
		return errResponse(req.ID, CodeInvalidParams, "owner is required")
	}
	ids, err := h.indexer.GetPropsByOwner(params.Owner)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if ids == nil {
		ids = []string{}
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getTransfersByAddress(req Request) Response {
	var params struct {
		Address core.Address `json:"address"`
		Limit   int          `json:"limit"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	if params.Address.IsZero() {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	list, err := h.indexer.GetTransfersByAddress(params.Address, params.Limit)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if list == nil {
		list = []indexer.Transfer{}
	}
	return okResponse(req.ID, list)
}

func (h *Handler) getEvents(req Request) Response {
	if h.journal == nil {
		return errResponse(req.ID, CodeInternalError, "event journal disabled")
	}
	var params struct {
		Type       events.EventType `json:"type"`
		TxID       string           `json:"tx_id"`
		FromHeight int64            `json:"from_height"`
		AfterSeq   int64            `json:"after_seq"`
		Limit      int              `json:"limit"`
	}
	if err := decode(req, &params); err != nil {
		return invalid(req, err)
	}
	if params.Limit > 1000 {
		return errResponse(req.ID, CodeInvalidParams, "limit must be <= 1000")
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	recs, err := h.journal.Query(ctx, journal.Filter{
		Type:       params.Type,
		TxID:       params.TxID,
		FromHeight: params.FromHeight,
		AfterSeq:   params.AfterSeq,
		Limit:      params.Limit,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return errResponse(req.ID, CodeInternalError, "event query timed out")
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if recs == nil {
		recs = []journal.Record{}
	}
	return okResponse(req.ID, recs)
}

package vm

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
)

// ErrorCode is the stable identifier of a contract error, exposed to RPC
// clients so they can tell failure causes apart.
type ErrorCode string

const (
	CodeUnauthorized          ErrorCode = "unauthorized"
	CodeZeroAddress           ErrorCode = "zero_address"
	CodeInsufficientBalance   ErrorCode = "insufficient_balance"
	CodeInsufficientAllowance ErrorCode = "insufficient_allowance"
	CodeAlreadyRegistered     ErrorCode = "already_registered"
	CodeOwnerCannotRegister   ErrorCode = "owner_cannot_register"
	CodeNotRegistered         ErrorCode = "not_registered"
	CodeNotFound              ErrorCode = "not_found"
	CodeNotSuspended          ErrorCode = "not_suspended"
	CodeNoPlayers             ErrorCode = "no_players"
	CodeTransferFailed        ErrorCode = "transfer_failed"
	CodePropUnavailable       ErrorCode = "prop_unavailable"
	CodeOverflow              ErrorCode = "arithmetic_overflow"
)

// ContractError is a failure raised by a contract operation. The set is
// closed: only the types declared in this file implement it.
type ContractError interface {
	error
	Code() ErrorCode
	contractError()
}

// codeError is a contract error without payload.
type codeError ErrorCode

var messages = map[codeError]string{
	codeError(CodeUnauthorized):        "caller is not the owner",
	codeError(CodeZeroAddress):         "zero address not allowed",
	codeError(CodeAlreadyRegistered):   "player already registered",
	codeError(CodeOwnerCannotRegister): "owner cannot register as a player",
	codeError(CodeNotRegistered):       "caller is not a registered player",
	codeError(CodeNotFound):            "not found",
	codeError(CodeNotSuspended):        "player is not suspended",
	codeError(CodeNoPlayers):           "no players to reward",
	codeError(CodeTransferFailed):      "transfer failed",
	codeError(CodePropUnavailable):     "prop is already owned by a player",
	codeError(CodeOverflow):            "arithmetic overflow",
}

func (e codeError) Error() string   { return messages[e] }
func (e codeError) Code() ErrorCode { return ErrorCode(e) }
func (codeError) contractError()    {}

var (
	ErrUnauthorized        ContractError = codeError(CodeUnauthorized)
	ErrZeroAddress         ContractError = codeError(CodeZeroAddress)
	ErrAlreadyRegistered   ContractError = codeError(CodeAlreadyRegistered)
	ErrOwnerCannotRegister ContractError = codeError(CodeOwnerCannotRegister)
	ErrNotRegistered       ContractError = codeError(CodeNotRegistered)
	ErrNotFound            ContractError = codeError(CodeNotFound)
	ErrNotSuspended        ContractError = codeError(CodeNotSuspended)
	ErrNoPlayers           ContractError = codeError(CodeNoPlayers)
	ErrTransferFailed      ContractError = codeError(CodeTransferFailed)
	ErrPropUnavailable     ContractError = codeError(CodePropUnavailable)
	ErrOverflow            ContractError = codeError(CodeOverflow)
)

// InsufficientBalanceError reports a debit larger than the holder's balance.
type InsufficientBalanceError struct {
	From core.Address
	Have *uint256.Int
	Want *uint256.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: have %s want %s", e.From, e.Have.Dec(), e.Want.Dec())
}
func (e *InsufficientBalanceError) Code() ErrorCode { return CodeInsufficientBalance }
func (*InsufficientBalanceError) contractError()    {}

// InsufficientAllowanceError reports a transfer_from exceeding the allowance.
type InsufficientAllowanceError struct {
	Owner   core.Address
	Spender core.Address
	Have    *uint256.Int
	Want    *uint256.Int
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("insufficient allowance %s -> %s: have %s want %s",
		e.Owner, e.Spender, e.Have.Dec(), e.Want.Dec())
}
func (e *InsufficientAllowanceError) Code() ErrorCode { return CodeInsufficientAllowance }
func (*InsufficientAllowanceError) contractError()    {}

// AsContractError unwraps err to the contract error it carries, if any.
func AsContractError(err error) (ContractError, bool) {
	var ce ContractError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

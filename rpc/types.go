// Package rpc exposes chain state via a JSON-RPC 2.0 HTTP endpoint, a
// Prometheus scrape endpoint and a websocket event stream.
package rpc

import (
	"encoding/json"

	"github.com/tolelom/degenchain/vm"
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ContractErrorData is the data member of a CodeContractError response.
// Have and Want are set for insufficient balance and allowance failures.
type ContractErrorData struct {
	Code vm.ErrorCode `json:"code"`
	Have string       `json:"have,omitempty"`
	Want string       `json:"want,omitempty"`
}

// Standard JSON-RPC error codes, plus the server-defined contract range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeContractError  = -32010
)

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func contractErrResponse(id any, ce vm.ContractError) Response {
	data := ContractErrorData{Code: ce.Code()}
	switch e := ce.(type) {
	case *vm.InsufficientBalanceError:
		data.Have, data.Want = e.Have.Dec(), e.Want.Dec()
	case *vm.InsufficientAllowanceError:
		data.Have, data.Want = e.Have.Dec(), e.Want.Dec()
	}
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: CodeContractError, Message: ce.Error(), Data: data},
	}
}

// failure maps err to a contract error response when it carries one.
func failure(id any, err error) Response {
	if ce, ok := vm.AsContractError(err); ok {
		return contractErrResponse(id, ce)
	}
	return errResponse(id, CodeInternalError, err.Error())
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

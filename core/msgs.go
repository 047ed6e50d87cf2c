package core

import "creditchain/core/types"

// Handler executes messages addressed to a registered contract address.
type Handler interface {
	Execute(ctx *Context, info MessageInfo, msg any) (*Response, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx *Context, info MessageInfo, msg any) (*Response, error)

// Execute implements Handler.
func (f HandlerFunc) Execute(ctx *Context, info MessageInfo, msg any) (*Response, error) {
	return f(ctx, info, msg)
}

// Msg is a sub-message emitted by a handler. Sub-messages run after the
// emitting handler returns, in order, each one fully (including its own
// sub-messages) before the next.
type Msg interface {
	isMsg()
}

// ExecuteMsg calls another contract. The emitting contract becomes the sender
// and Funds move from it to the target before dispatch.
type ExecuteMsg struct {
	Contract string
	Msg      any
	Funds    types.Coins
}

// BankMsg transfers coins from the emitting contract.
type BankMsg struct {
	To     string
	Amount types.Coins
}

func (ExecuteMsg) isMsg() {}
func (BankMsg) isMsg() {}

// Response is returned by handlers.
type Response struct {
	Messages []Msg
	Data     any
}

// NewResponse returns an empty response.
func NewResponse() *Response {
	return &Response{}
}

// AddExecute queues a contract call.
func (r *Response) AddExecute(contract string, msg any, funds ...types.Coin) *Response {
	r.Messages = append(r.Messages, ExecuteMsg{Contract: contract, Msg: msg, Funds: types.NewCoins(funds...)})
	return r
}

// AddBankSend queues a transfer. Zero amounts are skipped.
func (r *Response) AddBankSend(to string, coins ...types.Coin) *Response {
	amount := types.NewCoins(coins...)
	if amount.Empty() {
		return r
	}
	r.Messages = append(r.Messages, BankMsg{To: to, Amount: amount})
	return r
}

// Merge appends the messages of other.
func (r *Response) Merge(other *Response) *Response {
	if other == nil {
		return r
	}
	r.Messages = append(r.Messages, other.Messages...)
	if other.Data != nil {
		r.Data = other.Data
	}
	return r
}

package accountnft

import (
	"strconv"

	errorsmod "cosmossdk.io/errors"

	"creditchain/core"
	cerrors "creditchain/core/errors"
	"creditchain/core/events"
	"creditchain/core/state"
	"creditchain/crypto"
)

var (
	nextIDKey    = []byte("nft/next_id")
	ownerPrefix  = "nft/owner/"
	tokensPrefix = "nft/tokens/"
)

// Mint creates a token owned by Owner. Only the minter may call it.
type Mint struct {
	Owner string `json:"owner"`
}

// TransferNft moves a token to Recipient. Only the current owner may call it.
type TransferNft struct {
	TokenID   string `json:"token_id"`
	Recipient string `json:"recipient"`
}

// Engine is the registry of credit-account tokens. Token ids are decimal
// strings starting at "1".
type Engine struct {
	minter string
}

// NewEngine returns a registry whose tokens can only be minted by minter.
func NewEngine(minter string) *Engine {
	return &Engine{minter: minter}
}

// Execute implements core.Handler.
func (e *Engine) Execute(ctx *core.Context, info core.MessageInfo, msg any) (*core.Response, error) {
	switch m := msg.(type) {
	case Mint:
		if info.Sender != e.minter {
			return nil, errorsmod.Wrapf(cerrors.ErrUnauthorized, "accountnft: %s is not the minter", info.Sender)
		}
		id, err := e.mint(ctx, m.Owner)
		if err != nil {
			return nil, err
		}
		resp := core.NewResponse()
		resp.Data = id
		return resp, nil
	case TransferNft:
		return core.NewResponse(), e.transfer(ctx, info.Sender, m)
	default:
		return nil, errorsmod.Wrapf(cerrors.ErrUnknownMessage, "accountnft: %T", msg)
	}
}

func (e *Engine) mint(ctx *core.Context, owner string) (string, error) {
	if err := crypto.ValidateAddress(owner); err != nil {
		return "", errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	id, err := e.NextID(ctx)
	if err != nil {
		return "", err
	}
	next, _ := strconv.ParseUint(id, 10, 64)
	if err := ctx.Store().KVPut(nextIDKey, next+1); err != nil {
		return "", err
	}
	if err := e.setOwner(ctx, id, owner); err != nil {
		return "", err
	}
	ctx.EmitEvent(events.AccountMinted{TokenID: id, Owner: owner})
	return id, nil
}

func (e *Engine) transfer(ctx *core.Context, sender string, m TransferNft) error {
	owner, err := e.OwnerOf(ctx, m.TokenID)
	if err != nil {
		return err
	}
	if owner != sender {
		return errorsmod.Wrapf(cerrors.ErrUnauthorized, "accountnft: %s does not own %s", sender, m.TokenID)
	}
	if err := crypto.ValidateAddress(m.Recipient); err != nil {
		return errorsmod.Wrap(cerrors.ErrValidation, err.Error())
	}
	if err := ctx.Store().KVRemove(state.Key(tokensPrefix, owner), []byte(m.TokenID)); err != nil {
		return err
	}
	if err := e.setOwner(ctx, m.TokenID, m.Recipient); err != nil {
		return err
	}
	ctx.EmitEvent(events.AccountTransferred{TokenID: m.TokenID, From: owner, To: m.Recipient})
	return nil
}

func (e *Engine) setOwner(ctx *core.Context, id, owner string) error {
	if err := ctx.Store().KVPut(state.Key(ownerPrefix, id), owner); err != nil {
		return err
	}
	return ctx.Store().KVAppend(state.Key(tokensPrefix, owner), []byte(id))
}

// NextID returns the id the next Mint will assign.
func (e *Engine) NextID(ctx *core.Context) (string, error) {
	next := uint64(1)
	var stored uint64
	ok, err := ctx.Store().KVGet(nextIDKey, &stored)
	if err != nil {
		return "", err
	}
	if ok {
		next = stored
	}
	return strconv.FormatUint(next, 10), nil
}

// OwnerOf returns the owner of a token or ErrAccountNotFound.
func (e *Engine) OwnerOf(ctx *core.Context, tokenID string) (string, error) {
	var owner string
	ok, err := ctx.Store().KVGet(state.Key(ownerPrefix, tokenID), &owner)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errorsmod.Wrapf(cerrors.ErrAccountNotFound, "token %s", tokenID)
	}
	return owner, nil
}

// Tokens lists the tokens held by owner in mint order.
func (e *Engine) Tokens(ctx *core.Context, owner string) ([]string, error) {
	list, err := ctx.Store().KVGetList(state.Key(tokensPrefix, owner))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(list))
	for i, raw := range list {
		out[i] = string(raw)
	}
	return out, nil
}

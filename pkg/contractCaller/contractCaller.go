// Package contractCaller executes ordered batches of read-only contract calls on one chain.
//
// Implementations perform exactly one network round trip per BatchRead and never retry.
// Transport failures surface as stakingTypes.ErrRpcUnavailable. Calls that cannot be encoded,
// revert, or decode into something other than the ABI declares surface as
// stakingTypes.ErrCallEncoding; a zero value is never returned in their place.
package contractCaller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"github.com/pearl-agents/staking-sidecar/pkg/utils"
)

type IContractCaller interface {
	// BatchRead returns one result per call, in the order the calls were given.
	BatchRead(ctx context.Context, chainId uint64, calls []*Call) ([]*CallResult, error)
}

// Call is a single read-only contract call.
type Call struct {
	Address common.Address
	Abi     *abi.ABI
	Method  string
	Args    []interface{}
}

func NewCall(address common.Address, contractAbi *abi.ABI, method string, args ...interface{}) *Call {
	return &Call{
		Address: address,
		Abi:     contractAbi,
		Method:  method,
		Args:    args,
	}
}

func (c *Call) String() string {
	return fmt.Sprintf("%s.%s", c.Address.Hex(), c.Method)
}

func encodingError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", stakingTypes.ErrCallEncoding, fmt.Sprintf(format, args...))
}

// Pack validates the call and ABI-encodes its calldata.
func (c *Call) Pack() ([]byte, error) {
	if c.Abi == nil {
		return nil, encodingError("%s: missing abi", c)
	}
	if utils.IsNullAddress(c.Address) {
		return nil, encodingError("%s: null contract address", c)
	}
	if _, ok := c.Abi.Methods[c.Method]; !ok {
		return nil, encodingError("%s: method not found in abi", c)
	}
	data, err := c.Abi.Pack(c.Method, c.Args...)
	if err != nil {
		return nil, encodingError("%s: failed to pack arguments: %v", c, err)
	}
	return data, nil
}

// Unpack decodes return data for the call. Empty return data is an error: it is what a
// call to an address without code returns.
func (c *Call) Unpack(data []byte) (*CallResult, error) {
	if len(data) == 0 {
		return nil, encodingError("%s: empty return data", c)
	}
	values, err := c.Abi.Unpack(c.Method, data)
	if err != nil {
		return nil, encodingError("%s: failed to unpack return data: %v", c, err)
	}
	return &CallResult{Call: c, Values: values}, nil
}

// CallResult holds the decoded return values of one Call.
type CallResult struct {
	Call   *Call
	Values []interface{}
}

func (r *CallResult) value(i int) (interface{}, error) {
	if i < 0 || i >= len(r.Values) {
		return nil, encodingError("%s: no return value at index %d", r.Call, i)
	}
	return r.Values[i], nil
}

func typeError(r *CallResult, i int, expected string, got interface{}) error {
	return encodingError("%s: return value %d is %T, expected %s", r.Call, i, got, expected)
}

func (r *CallResult) BigInt(i int) (*big.Int, error) {
	v, err := r.value(i)
	if err != nil {
		return nil, err
	}
	b, ok := v.(*big.Int)
	if !ok || b == nil {
		return nil, typeError(r, i, "*big.Int", v)
	}
	return b, nil
}

func (r *CallResult) BigIntSlice(i int) ([]*big.Int, error) {
	v, err := r.value(i)
	if err != nil {
		return nil, err
	}
	s, ok := v.([]*big.Int)
	if !ok {
		return nil, typeError(r, i, "[]*big.Int", v)
	}
	return s, nil
}

func (r *CallResult) Address(i int) (common.Address, error) {
	v, err := r.value(i)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, typeError(r, i, "common.Address", v)
	}
	return a, nil
}

func (r *CallResult) Uint8(i int) (uint8, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint8)
	if !ok {
		return 0, typeError(r, i, "uint8", v)
	}
	return u, nil
}

func (r *CallResult) Uint32(i int) (uint32, error) {
	v, err := r.value(i)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint32)
	if !ok {
		return 0, typeError(r, i, "uint32", v)
	}
	return u, nil
}

// Into converts a tuple return value into dst, a pointer to a struct whose fields match
// the tuple components by name.
func (r *CallResult) Into(i int, dst interface{}) (err error) {
	v, err := r.value(i)
	if err != nil {
		return err
	}
	// ConvertType panics when the shapes are incompatible
	defer func() {
		if p := recover(); p != nil {
			err = typeError(r, i, fmt.Sprintf("%T", dst), v)
		}
	}()
	abi.ConvertType(v, dst)
	return nil
}

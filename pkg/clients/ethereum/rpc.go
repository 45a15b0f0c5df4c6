package ethereum

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint          `json:"id"`
}

type RPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	Result  *json.RawMessage `json:"result"`
	Error   *RPCError        `json:"error"`
	ID      uint             `json:"id"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsRevert reports whether the node rejected the call because the contract reverted.
func (e *RPCError) IsRevert() bool {
	return e.Code == 3 || strings.Contains(strings.ToLower(e.Message), "execution reverted")
}

type RPCMethod[T any] struct {
	Name           string
	ResponseParser func(res *json.RawMessage) (T, error)
}

var (
	RPCMethod_call = &RPCMethod[[]byte]{
		Name: "eth_call",
		ResponseParser: func(res *json.RawMessage) ([]byte, error) {
			if res == nil {
				return nil, fmt.Errorf("missing result")
			}
			var hex string
			if err := json.Unmarshal(*res, &hex); err != nil {
				return nil, fmt.Errorf("failed to unmarshal eth_call result: %w", err)
			}
			return hexutil.Decode(hex)
		},
	}

	RPCMethod_chainId = &RPCMethod[uint64]{
		Name: "eth_chainId",
		ResponseParser: func(res *json.RawMessage) (uint64, error) {
			if res == nil {
				return 0, fmt.Errorf("missing result")
			}
			var hex string
			if err := json.Unmarshal(*res, &hex); err != nil {
				return 0, fmt.Errorf("failed to unmarshal eth_chainId result: %w", err)
			}
			return hexutil.DecodeUint64(hex)
		},
	}
)

type callMessage struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// GetEthCallRequest builds an eth_call against the latest block.
func GetEthCallRequest(to common.Address, data []byte, id uint) *RPCRequest {
	return &RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  RPCMethod_call.Name,
		Params: []interface{}{
			callMessage{To: to.Hex(), Data: hexutil.Encode(data)},
			"latest",
		},
		ID: id,
	}
}

func GetChainIdRequest(id uint) *RPCRequest {
	return &RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  RPCMethod_chainId.Name,
		Params:  []interface{}{},
		ID:      id,
	}
}

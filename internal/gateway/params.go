package gateway

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// txParams is the eth_sendTransaction / eth_call / eth_estimateGas object.
// Hex quantities decode through hexutil so malformed input fails loudly
// instead of silently truncating.
type txParams struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Data     hexutil.Bytes   `json:"data"`
	Input    hexutil.Bytes   `json:"input"`
}

func (p *txParams) callData() []byte {
	if len(p.Input) > 0 {
		return p.Input
	}
	return p.Data
}

func (p *txParams) value() *big.Int {
	if p.Value == nil {
		return new(big.Int)
	}
	return (*big.Int)(p.Value)
}

func (p *txParams) gasLimit() uint64 {
	if p.Gas == nil {
		return 0
	}
	return uint64(*p.Gas)
}

func (p *txParams) gasPrice() *big.Int {
	if p.GasPrice == nil {
		return nil
	}
	return (*big.Int)(p.GasPrice)
}

func parseTxParams(raw json.RawMessage) (*txParams, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return nil, fmt.Errorf("expected a transaction object as first param")
	}
	var tx txParams
	if err := json.Unmarshal(arr[0], &tx); err != nil {
		return nil, fmt.Errorf("invalid transaction object: %v", err)
	}
	if tx.From == (common.Address{}) {
		return nil, fmt.Errorf("missing from address")
	}
	return &tx, nil
}

// parsePersonalSign handles personal_sign params [data, address]. Some dApps
// send the legacy [address, data] order; both shapes are accepted by probing
// which element parses as an address.
func parsePersonalSign(raw json.RawMessage) (common.Address, []byte, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 {
		return common.Address{}, nil, fmt.Errorf("expected [data, address] params")
	}
	dataStr, addrStr := arr[0], arr[1]
	if common.IsHexAddress(dataStr) && !common.IsHexAddress(addrStr) {
		dataStr, addrStr = addrStr, dataStr
	}
	if !common.IsHexAddress(addrStr) {
		return common.Address{}, nil, fmt.Errorf("invalid signer address %q", addrStr)
	}
	msg, err := hexutil.Decode(dataStr)
	if err != nil {
		// Plain UTF-8 message, not hex encoded.
		msg = []byte(dataStr)
	}
	return common.HexToAddress(addrStr), msg, nil
}

// parseTypedData handles eth_signTypedData_v4 params [address, typedData].
// The typed data arrives either as a JSON string or inline JSON.
func parseTypedData(raw json.RawMessage) (common.Address, json.RawMessage, error) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 2 {
		return common.Address{}, nil, fmt.Errorf("expected [address, typedData] params")
	}
	var addrStr string
	if err := json.Unmarshal(arr[0], &addrStr); err != nil || !common.IsHexAddress(addrStr) {
		return common.Address{}, nil, fmt.Errorf("invalid signer address")
	}
	typed := arr[1]
	var asString string
	if err := json.Unmarshal(typed, &asString); err == nil {
		typed = json.RawMessage(asString)
	}
	if !json.Valid(typed) {
		return common.Address{}, nil, fmt.Errorf("typed data is not valid JSON")
	}
	return common.HexToAddress(addrStr), typed, nil
}

func parseChainIDParam(raw json.RawMessage) (uint64, error) {
	var arr []struct {
		ChainID string `json:"chainId"`
	}
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 || arr[0].ChainID == "" {
		return 0, fmt.Errorf("expected [{chainId}] params")
	}
	id, err := hexutil.DecodeUint64(arr[0].ChainID)
	if err != nil {
		return 0, fmt.Errorf("invalid chainId %q", arr[0].ChainID)
	}
	return id, nil
}

type addChainParams struct {
	ChainID        string   `json:"chainId"`
	ChainName      string   `json:"chainName"`
	RPCURLs        []string `json:"rpcUrls"`
	NativeCurrency *struct {
		Symbol string `json:"symbol"`
	} `json:"nativeCurrency"`
	BlockExplorerURLs []string `json:"blockExplorerUrls"`
}

func parseAddChain(raw json.RawMessage) (*addChainParams, uint64, error) {
	var arr []addChainParams
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return nil, 0, fmt.Errorf("expected a chain descriptor as first param")
	}
	p := arr[0]
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid chainId %q", p.ChainID)
	}
	if p.ChainName == "" || len(p.RPCURLs) == 0 {
		return nil, 0, fmt.Errorf("chainName and rpcUrls are required")
	}
	for _, u := range p.RPCURLs {
		if !strings.HasPrefix(u, "https://") && !strings.HasPrefix(u, "http://") {
			return nil, 0, fmt.Errorf("unsupported rpc url scheme in %q", u)
		}
	}
	return &p, id, nil
}

type watchAssetParams struct {
	Type    string `json:"type"`
	Options struct {
		Address  string `json:"address"`
		Symbol   string `json:"symbol"`
		Decimals uint8  `json:"decimals"`
		Image    string `json:"image"`
	} `json:"options"`
}

// parseWatchAsset handles wallet_watchAsset, whose params are an object,
// not an array.
func parseWatchAsset(raw json.RawMessage) (*watchAssetParams, error) {
	var p watchAssetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		// MetaMask-style clients sometimes wrap it in a one-element array.
		var arr []watchAssetParams
		if err2 := json.Unmarshal(raw, &arr); err2 != nil || len(arr) < 1 {
			return nil, fmt.Errorf("invalid watchAsset params: %v", err)
		}
		p = arr[0]
	}
	if p.Type != "ERC20" {
		return nil, fmt.Errorf("unsupported asset type %q", p.Type)
	}
	if !common.IsHexAddress(p.Options.Address) {
		return nil, fmt.Errorf("invalid asset address %q", p.Options.Address)
	}
	if p.Options.Symbol == "" || len(p.Options.Symbol) > 11 {
		return nil, fmt.Errorf("asset symbol must be 1-11 characters")
	}
	if p.Options.Decimals > 36 {
		return nil, fmt.Errorf("asset decimals out of range")
	}
	return &p, nil
}

// parseBalanceParams handles [address, blockTag] shapes shared by
// eth_getBalance and eth_getTransactionCount. The block tag is accepted and
// ignored beyond validation; reads always serve latest/pending state.
func parseBalanceParams(raw json.RawMessage) (common.Address, error) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) < 1 {
		return common.Address{}, fmt.Errorf("expected [address, blockTag] params")
	}
	if !common.IsHexAddress(arr[0]) {
		return common.Address{}, fmt.Errorf("invalid address %q", arr[0])
	}
	return common.HexToAddress(arr[0]), nil
}

// formatEther renders a wei amount as a decimal ether string for approval
// previews, trimming trailing zeros.
func formatEther(wei *big.Int) string {
	if wei == nil || wei.Sign() == 0 {
		return "0"
	}
	r := new(big.Rat).SetFrac(wei, big.NewInt(1e18))
	s := r.FloatString(18)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// displayMessage renders sign-request bytes for the approval prompt:
// readable text as-is, binary blobs as hex.
func displayMessage(msg []byte) string {
	if utf8.Valid(msg) && !strings.ContainsRune(string(msg), 0) {
		return string(msg)
	}
	return hexutil.Encode(msg)
}

package store

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress canonicalizes a token contract address to its lowercase
// 0x form, rejecting anything that is not 20 bytes of hex.
func NormalizeAddress(addr string) (string, error) {
	s := strings.TrimSpace(addr)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

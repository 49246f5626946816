package evmwallet

import (
	"strings"

	"github.com/Da-devs/dPay/internal/core/ports"
	"github.com/ethereum/go-ethereum/common"
)

type addressValidator struct {
	requireChecksum bool
}

// NewAddressValidator accepts 20 byte hex addresses, 0x prefix optional. With
// requireChecksum set, mixed case addresses must also match their EIP-55
// checksum.
func NewAddressValidator(requireChecksum bool) ports.AddressValidator {
	return &addressValidator{requireChecksum}
}

func (v *addressValidator) IsValidAddress(address string) bool {
	if !common.IsHexAddress(address) {
		return false
	}
	if !v.requireChecksum || !isMixedCase(address) {
		return true
	}
	return common.HexToAddress(address).Hex() == address
}

func isMixedCase(address string) bool {
	var hasLower, hasUpper bool
	hex := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	for _, c := range hex {
		switch {
		case c >= 'a' && c <= 'f':
			hasLower = true
		case c >= 'A' && c <= 'F':
			hasUpper = true
		}
	}
	return hasLower && hasUpper
}

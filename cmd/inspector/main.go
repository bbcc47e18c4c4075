package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/GoCCTP/burngate/internal/eip712"
	"github.com/GoCCTP/burngate/internal/nonce"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// inspector is an offline debugging tool for the two encodings that cause most
// integration failures: the CCTP nonce layout and the EIP-712 digest.
//
//	inspector -encode -domain 6 -address 0xabc...        pack a nonce
//	inspector -decode 0x0000...                          unpack a nonce
//	inspector -digest -name USDC -version 2 ...          recompute a digest
func main() {
	var (
		encode  = flag.Bool("encode", false, "encode a CCTP nonce from -domain and -address")
		decode  = flag.String("decode", "", "decode a 32-byte CCTP nonce (hex)")
		digest  = flag.Bool("digest", false, "compute the EIP-712 digest for an authorization")
		domain  = flag.Uint("domain", 0, "destination domain for -encode")
		address = flag.String("address", "", "destination address for -encode")

		tokenName    = flag.String("name", "USDC", "token name for -digest")
		tokenVersion = flag.String("version", "2", "token version for -digest")
		chainID      = flag.Int64("chain-id", 84532, "chain id for -digest")
		verifier     = flag.String("verifier", "", "verifying token contract for -digest")
		from         = flag.String("from", "", "authorization sender for -digest")
		to           = flag.String("to", "", "authorization recipient for -digest")
		amount       = flag.String("amount", "0", "value in base units for -digest")
		validAfter   = flag.Int64("valid-after", 0, "validAfter unix seconds for -digest")
		validBefore  = flag.Int64("valid-before", 0, "validBefore unix seconds for -digest")
		nonceHex     = flag.String("nonce", "", "32-byte nonce (hex) for -digest")
	)
	flag.Parse()

	switch {
	case *encode:
		runEncode(uint32(*domain), *address)
	case *decode != "":
		runDecode(*decode)
	case *digest:
		runDigest(*tokenName, *tokenVersion, *chainID, *verifier,
			*from, *to, *amount, *validAfter, *validBefore, *nonceHex)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runEncode(domain uint32, address string) {
	packed, err := nonce.Encode(domain, address)
	if err != nil {
		fatalf("encode failed: %v", err)
	}
	fmt.Printf("nonce:               0x%x\n", packed)
	fmt.Printf("destination_domain:  %d (%s)\n", domain, nonce.DomainName(domain))
	fmt.Printf("destination_address: %s\n", common.HexToAddress(address).Hex())
}

func runDecode(raw string) {
	data, err := hexutil.Decode(withHexPrefix(raw))
	if err != nil {
		fatalf("invalid hex: %v", err)
	}
	dest, err := nonce.Decode(data)
	if err != nil {
		fatalf("decode failed: %v", err)
	}
	fmt.Printf("destination_domain:  %d (%s)\n", dest.Domain, nonce.DomainName(dest.Domain))
	fmt.Printf("destination_address: %s\n", dest.Address.Hex())
	fmt.Printf("salt:                0x%x\n", dest.Salt)
}

func runDigest(name, version string, chainID int64, verifier, from, to, amount string, validAfter, validBefore int64, nonceHex string) {
	if !common.IsHexAddress(verifier) || !common.IsHexAddress(from) || !common.IsHexAddress(to) {
		fatalf("-verifier, -from and -to must be hex addresses")
	}
	value, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		fatalf("invalid -amount: %q", amount)
	}
	rawNonce, err := hexutil.Decode(withHexPrefix(nonceHex))
	if err != nil || len(rawNonce) != nonce.Size {
		fatalf("-nonce must be 32 bytes of hex")
	}

	auth := &eip712.Authorization{
		From:        common.HexToAddress(from),
		To:          common.HexToAddress(to),
		Value:       value,
		ValidAfter:  big.NewInt(validAfter),
		ValidBefore: big.NewInt(validBefore),
	}
	copy(auth.Nonce[:], rawNonce)

	sep, structHash, digest, err := eip712.AuthorizationDigest(
		name, version, chainID, common.HexToAddress(verifier), auth)
	if err != nil {
		fatalf("digest failed: %v", err)
	}
	fmt.Printf("domain_separator: %s\n", sep.Hex())
	fmt.Printf("struct_hash:      %s\n", structHash.Hex())
	fmt.Printf("digest:           %s\n", digest.Hex())
}

func withHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s
	}
	return "0x" + s
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

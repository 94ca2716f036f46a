package matcherctx

import "github.com/gagliardetto/solana-go"

// Account is the caller-supplied view of a transaction account: the raw
// data buffer plus the authorization facts the host runtime established
// for the current instruction.
type Account struct {
	Key        solana.PublicKey
	Data       []byte
	IsSigner   bool
	IsWritable bool
}

package chain

import "encoding/json"

// SignatureInfo is one entry from getSignaturesForAddress, newest first.
type SignatureInfo struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Err       json.RawMessage `json:"err"`
	Memo      *string         `json:"memo"`
}

// ParsedTransaction is a jsonParsed getTransaction result flattened to the
// parts the matcher cares about.
type ParsedTransaction struct {
	Slot      uint64           `json:"slot"`
	BlockTime *int64           `json:"blockTime"`
	Meta      *TransactionMeta `json:"meta"`
	Message   Message          `json:"-"`
}

type TransactionMeta struct {
	Err               json.RawMessage `json:"err"`
	PreBalances       []uint64        `json:"preBalances"`
	PostBalances      []uint64        `json:"postBalances"`
	PreTokenBalances  []TokenBalance  `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance  `json:"postTokenBalances"`
	LogMessages       []string        `json:"logMessages"`
}

type TokenBalance struct {
	AccountIndex  int           `json:"accountIndex"`
	Mint          string        `json:"mint"`
	Owner         string        `json:"owner"`
	UITokenAmount UITokenAmount `json:"uiTokenAmount"`
}

type UITokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       int32  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

type Message struct {
	AccountKeys  []AccountKey  `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

type Instruction struct {
	Program   string          `json:"program"`
	ProgramID string          `json:"programId"`
	// Parsed is a bare string for spl-memo and an object for other programs.
	Parsed json.RawMessage `json:"parsed"`
}

// UnmarshalJSON lifts transaction.message up to the top level so callers do
// not walk the raw RPC envelope shape.
func (t *ParsedTransaction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Slot        uint64           `json:"slot"`
		BlockTime   *int64           `json:"blockTime"`
		Meta        *TransactionMeta `json:"meta"`
		Transaction struct {
			Message Message `json:"message"`
		} `json:"transaction"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Slot = raw.Slot
	t.BlockTime = raw.BlockTime
	t.Meta = raw.Meta
	t.Message = raw.Transaction.Message
	return nil
}

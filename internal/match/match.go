// Package match holds the pure payment decision logic: given a parsed
// transaction and an invoice's expected asset/amount/memo, decide whether the
// transaction pays the invoice. No transport or storage types leak in here.
package match

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/CloakLink/CloakLinkSOL/internal/chain"
	"github.com/CloakLink/CloakLinkSOL/internal/models"
)

// Native coin decimals: 1 SOL = 1e9 lamports.
const nativeDecimals = 9

const programLogPrefix = "Program log: "

type Options struct {
	RequireMemo bool
	MemoPrefix  string
}

// Matches reports whether tx satisfies the invoice. A stored amount that does
// not parse as a decimal is a data error and never matches.
func Matches(tx *chain.ParsedTransaction, invoice *models.Invoice, opts Options) bool {
	if tx == nil {
		return false
	}

	expected, err := decimal.NewFromString(invoice.Amount)
	if err != nil {
		return false
	}

	if opts.RequireMemo {
		want := opts.MemoPrefix + invoice.Slug
		if !containsMemo(ExtractMemos(tx), want) {
			return false
		}
	}

	asset := invoice.Asset()
	switch asset.Kind {
	case models.AssetNative:
		return NativeIncrease(tx, invoice.ReceiveAddress).GreaterThanOrEqual(expected)
	case models.AssetToken:
		for _, inc := range TokenIncreases(tx, invoice.ReceiveAddress) {
			if inc.Mint == asset.Mint && inc.Amount.GreaterThanOrEqual(expected) {
				return true
			}
		}
	}
	return false
}

// NativeIncrease computes the native-coin balance increase for address, in
// whole coins. An address missing from the account list yields zero.
func NativeIncrease(tx *chain.ParsedTransaction, address string) decimal.Decimal {
	idx := accountIndex(tx, address)
	if idx < 0 || tx.Meta == nil {
		return decimal.Zero
	}
	if idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return decimal.Zero
	}
	delta := int64(tx.Meta.PostBalances[idx]) - int64(tx.Meta.PreBalances[idx])
	return decimal.New(delta, -nativeDecimals)
}

type TokenIncrease struct {
	Mint   string
	Amount decimal.Decimal
}

// TokenIncreases computes per-mint token balance increases for owner, in
// human-readable token units. An account with no prior balance counts as a
// prior balance of zero.
func TokenIncreases(tx *chain.ParsedTransaction, owner string) []TokenIncrease {
	if tx.Meta == nil {
		return nil
	}

	pre := make(map[string]decimal.Decimal)
	for _, bal := range tx.Meta.PreTokenBalances {
		if bal.Owner == "" {
			continue
		}
		pre[bal.Owner+"-"+bal.Mint] = tokenAmount(bal)
	}

	var increases []TokenIncrease
	for _, bal := range tx.Meta.PostTokenBalances {
		if bal.Owner != owner {
			continue
		}
		previous := pre[bal.Owner+"-"+bal.Mint]
		delta := tokenAmount(bal).Sub(previous)
		if delta.IsPositive() {
			increases = append(increases, TokenIncrease{Mint: bal.Mint, Amount: delta})
		}
	}
	return increases
}

// ExtractMemos collects candidate memo strings from parsed memo instructions
// and program log lines.
func ExtractMemos(tx *chain.ParsedTransaction) []string {
	var memos []string
	for _, ix := range tx.Message.Instructions {
		if memo, ok := parsedMemo(ix); ok {
			memos = append(memos, memo)
		}
	}
	if tx.Meta != nil {
		for _, msg := range tx.Meta.LogMessages {
			msg = strings.Replace(msg, programLogPrefix, "", 1)
			if msg != "" {
				memos = append(memos, msg)
			}
		}
	}
	return memos
}

// parsedMemo handles both shapes the jsonParsed encoding produces: a bare
// string for spl-memo and an object with info.memo for wrapped variants.
func parsedMemo(ix chain.Instruction) (string, bool) {
	if len(ix.Parsed) == 0 {
		return "", false
	}
	var memo string
	if err := json.Unmarshal(ix.Parsed, &memo); err == nil && memo != "" {
		return memo, true
	}
	var wrapped struct {
		Info struct {
			Memo string `json:"memo"`
		} `json:"info"`
	}
	if err := json.Unmarshal(ix.Parsed, &wrapped); err == nil && wrapped.Info.Memo != "" {
		return wrapped.Info.Memo, true
	}
	return "", false
}

func tokenAmount(bal chain.TokenBalance) decimal.Decimal {
	if bal.UITokenAmount.UIAmountString != "" {
		if d, err := decimal.NewFromString(bal.UITokenAmount.UIAmountString); err == nil {
			return d
		}
	}
	raw, err := decimal.NewFromString(bal.UITokenAmount.Amount)
	if err != nil {
		return decimal.Zero
	}
	return raw.Shift(-bal.UITokenAmount.Decimals)
}

func accountIndex(tx *chain.ParsedTransaction, address string) int {
	for i, key := range tx.Message.AccountKeys {
		if key.Pubkey == address {
			return i
		}
	}
	return -1
}

func containsMemo(memos []string, want string) bool {
	for _, memo := range memos {
		if memo == want {
			return true
		}
	}
	return false
}

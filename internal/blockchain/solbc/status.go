// internal/blockchain/solbc/status.go
package solbc

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/candy-mint/internal/blockchain"
)

// ParseTxError переводит нетипизированное поле err из ответа RPC в *blockchain.TxError.
// nil означает успешную транзакцию.
//
// Поддерживаемые формы:
//
//	"AccountInUse"
//	{"InstructionError": [0, "InvalidAccountData"]}
//	{"InstructionError": [4, {"Custom": 311}]}
//	{"InsufficientFundsForRent": {"account_index": 2}}
func ParseTxError(raw interface{}) *blockchain.TxError {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return &blockchain.TxError{Kind: blockchain.TxErrorKind(v), InstructionIndex: -1, Raw: v}
	case map[string]interface{}:
		if len(v) == 0 {
			return nil
		}
		if payload, ok := v[string(blockchain.TxErrorInstruction)]; ok {
			return parseInstructionError(payload, marshalRaw(v))
		}
		return &blockchain.TxError{Kind: blockchain.TxErrorKind(firstKey(v)), InstructionIndex: -1, Raw: marshalRaw(v)}
	default:
		return &blockchain.TxError{Kind: blockchain.TxErrorUnknown, InstructionIndex: -1, Raw: marshalRaw(v)}
	}
}

func parseInstructionError(payload interface{}, raw string) *blockchain.TxError {
	txErr := &blockchain.TxError{Kind: blockchain.TxErrorInstruction, InstructionIndex: -1, Raw: raw}

	parts, ok := payload.([]interface{})
	if !ok || len(parts) != 2 {
		return txErr
	}
	if idx, ok := toUint64(parts[0]); ok {
		txErr.InstructionIndex = int(idx)
	}

	switch detail := parts[1].(type) {
	case string:
		txErr.Detail = detail
	case map[string]interface{}:
		if custom, ok := detail["Custom"]; ok {
			if code, ok := toUint64(custom); ok && code <= math.MaxUint32 {
				c := uint32(code)
				txErr.Code = &c
			}
			return txErr
		}
		txErr.Detail = firstKey(detail)
	}
	return txErr
}

// toUint64 принимает числа в любом виде, в котором их отдают json декодеры.
func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return uint64(n), true
	case json.Number:
		u, err := strconv.ParseUint(n.String(), 10, 64)
		return u, err == nil
	case int:
		return uint64(n), n >= 0
	case int64:
		return uint64(n), n >= 0
	case uint64:
		return n, true
	case uint32:
		return uint64(n), true
	default:
		return 0, false
	}
}

func firstKey(m map[string]interface{}) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

func marshalRaw(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// toSignatureStatus конвертирует ответ solana-go в типизированный статус.
func toSignatureStatus(res *rpc.SignatureStatusesResult) *blockchain.SignatureStatus {
	if res == nil {
		return nil
	}
	return &blockchain.SignatureStatus{
		Slot:               res.Slot,
		Confirmations:      res.Confirmations,
		ConfirmationStatus: res.ConfirmationStatus,
		Err:                ParseTxError(res.Err),
	}
}

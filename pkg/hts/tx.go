package hts

import (
	"fmt"
	"strings"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

// BuildMintTx prepares a mint of one serial per URI.
func BuildMintTx(tokenID string, uris []string, transactionMemo string) (*hedera.TokenMintTransaction, error) {
	parsedTokenID, err := parseTokenID(tokenID)
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return nil, fmt.Errorf("at least one metadata URI is required")
	}
	if len(uris) > MaxBatchSize {
		return nil, fmt.Errorf("cannot mint %d serials in one transaction (max %d)", len(uris), MaxBatchSize)
	}

	metadatas := make([][]byte, 0, len(uris))
	for index, uri := range uris {
		trimmed := strings.TrimSpace(uri)
		if trimmed == "" {
			return nil, fmt.Errorf("metadata URI %d is empty", index)
		}
		if len(trimmed) > MaxMetadataBytes {
			return nil, fmt.Errorf("metadata URI %d is %d bytes (max %d)", index, len(trimmed), MaxMetadataBytes)
		}
		metadatas = append(metadatas, []byte(trimmed))
	}

	transaction := hedera.NewTokenMintTransaction().
		SetTokenID(parsedTokenID).
		SetMetadatas(metadatas)

	if strings.TrimSpace(transactionMemo) != "" {
		transaction.SetTransactionMemo(transactionMemo)
	}

	return transaction, nil
}

// BuildTransferTx moves serials[i] from sender to receivers[i]. Receivers
// that are empty or equal to sender are skipped; the returned count is the
// number of transfers in the transaction, and the transaction is nil when
// it is zero.
func BuildTransferTx(
	tokenID string,
	sender string,
	serials []int64,
	receivers []string,
	transactionMemo string,
) (*hedera.TransferTransaction, int, error) {
	if len(serials) != len(receivers) {
		return nil, 0, fmt.Errorf("got %d serials for %d receivers", len(serials), len(receivers))
	}
	parsedTokenID, err := parseTokenID(tokenID)
	if err != nil {
		return nil, 0, err
	}
	from, err := hedera.AccountIDFromString(strings.TrimSpace(sender))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid sender account ID: %w", err)
	}

	transaction := hedera.NewTransferTransaction()
	count := 0
	for index, receiver := range receivers {
		trimmed := strings.TrimSpace(receiver)
		if trimmed == "" {
			continue
		}
		to, err := hedera.AccountIDFromString(trimmed)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid owner account ID %q: %w", trimmed, err)
		}
		if to.String() == from.String() {
			continue
		}
		transaction.AddNftTransfer(hedera.NftID{TokenID: parsedTokenID, SerialNumber: serials[index]}, from, to)
		count++
	}
	if count == 0 {
		return nil, 0, nil
	}
	if count > MaxBatchSize {
		return nil, 0, fmt.Errorf("cannot transfer %d serials in one transaction (max %d)", count, MaxBatchSize)
	}

	if strings.TrimSpace(transactionMemo) != "" {
		transaction.SetTransactionMemo(transactionMemo)
	}
	return transaction, count, nil
}

func parseTokenID(tokenID string) (hedera.TokenID, error) {
	trimmed := strings.TrimSpace(tokenID)
	if trimmed == "" {
		return hedera.TokenID{}, fmt.Errorf("token ID is required")
	}
	parsed, err := hedera.TokenIDFromString(trimmed)
	if err != nil {
		return hedera.TokenID{}, fmt.Errorf("invalid token ID: %w", err)
	}
	return parsed, nil
}

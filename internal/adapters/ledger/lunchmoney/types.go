package lunchmoney

import "github.com/SscSPs/brokerage_sync_app/internal/core/domain"

type transactionsResponse struct {
	Transactions []transactionJSON `json:"transactions"`
}

type transactionJSON struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Payee  string `json:"payee"`
	Notes  string `json:"notes"`
}

type insertTransactionJSON struct {
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Payee    string `json:"payee"`
	Currency string `json:"currency,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Status   string `json:"status,omitempty"`
	AssetID  int64  `json:"asset_id,omitempty"`
}

type insertRequest struct {
	Transactions []insertTransactionJSON `json:"transactions"`
}

type assetsResponse struct {
	Assets []assetJSON `json:"assets"`
}

type assetJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type updateAssetRequest struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency,omitempty"`
}

func toInsertJSON(txn domain.NormalizedTransaction, assetID int64) insertTransactionJSON {
	return insertTransactionJSON{
		Date:     txn.DateString(),
		Amount:   txn.Amount.String(),
		Payee:    txn.Payee,
		Currency: txn.Currency,
		Notes:    txn.Notes,
		Status:   string(txn.Status),
		AssetID:  assetID,
	}
}

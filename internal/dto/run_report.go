package dto

import (
	"time"

	"github.com/SscSPs/brokerage_sync_app/internal/core/domain"
)

// AccountReport is the per-account slice of a run report.
type AccountReport struct {
	NewTransactions   int      `json:"newTransactions"`
	SkippedDuplicates int      `json:"skippedDuplicates"`
	MappingFailures   int      `json:"mappingFailures,omitempty"`
	SubmitFailures    int      `json:"submitFailures,omitempty"`
	ItemErrors        []string `json:"itemErrors,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// RunReportResponse is the outward shape of one completed sync run.
type RunReportResponse struct {
	RunID      string    `json:"runID"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Results map[string]AccountReport `json:"results"`

	Totals struct {
		NewTransactions   int `json:"newTransactions"`
		SkippedDuplicates int `json:"skippedDuplicates"`
	} `json:"totals"`

	AccountsProcessed      int    `json:"accountsProcessed"`
	TokensRotated          int    `json:"tokensRotated"`
	CredentialStoreUpdated bool   `json:"credentialStoreUpdated"`
	PersistError           string `json:"persistError,omitempty"`
}

// ToRunReport converts a domain.RunResult to its response DTO.
func ToRunReport(run domain.RunResult) RunReportResponse {
	resp := RunReportResponse{
		RunID:                  run.RunID,
		Status:                 string(run.Status),
		StartedAt:              run.StartedAt,
		FinishedAt:             run.FinishedAt,
		Results:                make(map[string]AccountReport, len(run.Accounts)),
		AccountsProcessed:      run.AccountsProcessed,
		TokensRotated:          run.TokensRotated,
		CredentialStoreUpdated: run.CredentialsPersisted,
	}
	resp.Totals.NewTransactions = run.TotalNew
	resp.Totals.SkippedDuplicates = run.TotalSkipped
	if run.PersistErr != nil {
		resp.PersistError = run.PersistErr.Error()
	}

	for accountID, res := range run.Accounts {
		report := AccountReport{
			NewTransactions:   res.NewTransactions,
			SkippedDuplicates: res.SkippedDuplicates,
			MappingFailures:   res.MappingFailures,
			SubmitFailures:    res.SubmitFailures,
			ItemErrors:        res.ItemErrors,
		}
		if res.Err != nil {
			report.Error = res.Err.Error()
		}
		resp.Results[accountID] = report
	}
	return resp
}

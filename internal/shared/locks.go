package shared

import "fmt"

// PostingLockKey builds redis keys for posting critical sections.
func PostingLockKey(module string) string {
	return fmt.Sprintf("lock:%s:posting", module)
}

// Advisory lock namespaces used with pg_advisory_xact_lock for document numbering.
const (
	AdvisoryInvoiceNumber  int64 = 7301
	AdvisoryPurchaseNumber int64 = 7302
)

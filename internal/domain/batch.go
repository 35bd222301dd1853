package domain

import (
	"fmt"
	"strings"
)

// Batch status values reported to the caller
const (
	BatchStatusSuccess = "success"
	BatchStatusPartial = "partial"
	BatchStatusFailure = "failure"
)

// UploadFile is one image submitted as part of a batch
type UploadFile struct {
	Name string
	Data []byte
}

// FileFailure records why a single file could not be analyzed
type FileFailure struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

func (f FileFailure) String() string {
	return fmt.Sprintf("%s: %s", f.Filename, f.Reason)
}

// BatchResult aggregates the outcome of one batch upload. It lives only
// for the duration of a single ProcessBatch call and is never persisted.
type BatchResult struct {
	Status   string          `json:"status"`
	Message  string          `json:"message,omitempty"`
	Records  []ProductRecord `json:"records"`
	Failures []FileFailure   `json:"failures"`
}

// Finalize sets the presentational status and message from the
// accumulated successes and failures. A batch with zero successes is a
// single aggregate failure enumerating every per-file reason; a batch
// with some failures is a partial success.
func (b *BatchResult) Finalize(total int) {
	switch {
	case len(b.Records) == 0:
		b.Status = BatchStatusFailure
		b.Message = "すべてのファイルの解析に失敗しました\n\n" + b.joinFailures()
	case len(b.Records) < total:
		b.Status = BatchStatusPartial
		b.Message = fmt.Sprintf("%d件中%d件を解析しました。\n\n失敗:\n%s", total, len(b.Records), b.joinFailures())
	default:
		b.Status = BatchStatusSuccess
	}
}

func (b *BatchResult) joinFailures() string {
	lines := make([]string, 0, len(b.Failures))
	for _, f := range b.Failures {
		lines = append(lines, f.String())
	}
	return strings.Join(lines, "\n")
}

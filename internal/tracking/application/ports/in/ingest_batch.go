package in

import "context"

// Статусы элемента батча
const (
	BatchStored    = "stored"
	BatchDuplicate = "duplicate"
	BatchRejected  = "rejected"
)

// BatchElementResult — исход обработки одного элемента батча
type BatchElementResult struct {
	Index    int    `json:"index"`
	Status   string `json:"status"` // stored | duplicate | rejected
	ReportID string `json:"report_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// IngestBatchInput — батч точек offline-реплея, в порядке клиента
type IngestBatchInput struct {
	Points []IngestPositionInput
}

// IngestBatchOutput — поэлементные исходы
type IngestBatchOutput struct {
	Results []BatchElementResult
}

// IngestBatchUseCase обрабатывает батч тем же конвейером, что и одиночные
// точки. Батч не атомарен: каждый элемент проходит или отклоняется
// независимо (offline-реплей смешивает валидные и устаревшие записи).
type IngestBatchUseCase interface {
	Execute(ctx context.Context, input IngestBatchInput) (*IngestBatchOutput, error)
}

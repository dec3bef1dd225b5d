package log

// Attribute keys shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldRecordID      = "record_id"
	FieldRecordCount   = "record_count"
	FieldInvoiceNumber = "invoice_number"
	FieldAmountCents   = "amount_cents"
	FieldGeneration    = "generation"
	FieldFailedFields  = "failed_fields"
	FieldSheetRow      = "sheet_row"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentRecords   = "records"
	ComponentExtract   = "extract"
	ComponentLoader    = "loader"
	ComponentInvoice   = "invoice"
	ComponentStorage   = "storage"
	ComponentDevServer = "records_dev"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentTrace     = "trace"
)

const (
	OpCreate  = "create"
	OpRead    = "read"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpList    = "list"
	OpUpload  = "upload"
	OpExtract = "extract"
	OpLoad    = "load"
	OpSync    = "sync"
	OpRender  = "render"
)

// attrs collects key/value pairs for one log line. Keys are emitted in
// insertion order so request logs read the same every time.
type attrs struct {
	kv []any
}

func (a *attrs) add(key string, value any) *attrs {
	a.kv = append(a.kv, key, value)
	return a
}

// request adds the method, path, query and user agent of an HTTP request.
func (a *attrs) request(method, path, query, userAgent string) *attrs {
	a.add(FieldMethod, method).add(FieldPath, path)
	if query != "" {
		a.add(FieldQuery, query)
	}
	return a.add(FieldUserAgent, userAgent)
}

// record adds the identifying fields of an invoice. Empty values are left out.
func (a *attrs) record(id, invoiceNumber string, amountCents int64) *attrs {
	if id != "" {
		a.add(FieldRecordID, id)
	}
	if invoiceNumber != "" {
		a.add(FieldInvoiceNumber, invoiceNumber)
		a.add(FieldAmountCents, amountCents)
	}
	return a
}

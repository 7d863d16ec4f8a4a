package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MOrderEvents             MetricKey = "order_events_total"

	// MStockUnits counts units moved by the inventory guard, labelled
	// direction=reserved|released.
	MStockUnits MetricKey = "inventory_stock_units_total"
)

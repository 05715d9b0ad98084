package model

// TestParameters configures one testing flow against a target service.
// It doubles as the POST /api/tests/start request DTO.
type TestParameters struct {
	ServiceName   string `json:"service_name" validate:"required,notblank,max=255"`
	NumberOfUsers int    `json:"number_of_users" validate:"required,gte=1"`
	NumberOfTests int    `json:"number_of_tests" validate:"required,gte=1"`
	RatePerSecond int    `json:"rate_per_second" validate:"required,gte=1"`

	// TestSuccessByThePaymentFact ends the pipeline right after a successful
	// payment; the delivery stage is not built.
	TestSuccessByThePaymentFact bool `json:"test_success_by_the_payment_fact"`

	// StopAfterOrderCreation builds a pipeline that ends after order creation
	// with a neutral STOP outcome. Useful for pure write-rate runs.
	StopAfterOrderCreation bool `json:"stop_after_order_creation"`
}

// FlowSnapshot is the GET /api/tests/:service response DTO: a point-in-time
// view of a running flow's progress.
type FlowSnapshot struct {
	ServiceName   string `json:"service_name"`
	TestsStarted  int64  `json:"tests_started"`
	TestsFinished int64  `json:"tests_finished"`
	NumberOfTests int    `json:"number_of_tests"`
}

// RegisterServiceRequest is the POST /api/services request DTO for adding a
// target service descriptor at runtime.
type RegisterServiceRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=255"`
	BaseURL string `json:"base_url" validate:"required,url"`
	Token   string `json:"token"`
}

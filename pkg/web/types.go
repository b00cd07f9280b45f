package web

// DispatchRequest is the body of POST /dispatch.
type DispatchRequest struct {
	TriggerCode string         `json:"trigger_code" validate:"required"`
	UserID      any            `json:"user_id"      validate:"required"`
	Params      map[string]any `json:"params"`
}

// FinishJobRequest is the body of POST /jobs/:id/finish. The body is optional.
type FinishJobRequest struct {
	Result map[string]any `json:"result"`
}

// FailJobRequest is the body of POST /jobs/:id/fail. The body is optional.
type FailJobRequest struct {
	Reason string `json:"reason" validate:"max=1024"`
}

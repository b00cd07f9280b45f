package models

// ParameterUserID is the key holding the originating user in job parameters.
const ParameterUserID = "user_id"

// ResultKeyPositive is the job result key workers use to report a branch outcome.
const ResultKeyPositive = "positive"

// Parameters is the opaque context carried through a scenario graph.
type Parameters map[string]any

// NewParameters builds trigger parameters: params are copied and userID is
// always set, overriding any user_id present in params.
func NewParameters(userID any, params map[string]any) Parameters {
	parameters := make(Parameters, len(params)+1)
	for key, value := range params {
		parameters[key] = value
	}

	parameters[ParameterUserID] = userID

	return parameters
}

// UserID returns the originating user.
func (p Parameters) UserID() any {
	return p[ParameterUserID]
}

// Clone returns a shallow copy of p.
func (p Parameters) Clone() Parameters {
	clone := make(Parameters, len(p))
	for key, value := range p {
		clone[key] = value
	}

	return clone
}

package api

// createPolicyRequest is the body of POST /api/v1/policies.
type createPolicyRequest struct {
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Description  string `json:"description,omitempty"`
	Kind         string `json:"kind,omitempty"`
}

// ruleRequest is the body of rule insert and delete calls.
type ruleRequest struct {
	Rule    string `json:"rule"`
	Comment string `json:"comment,omitempty"`
}

// ruleResponse is one rule of a policy.
type ruleResponse struct {
	Rule string `json:"rule"`
}

// queryRequest is the body of POST /api/v1/policies/{name}/query.
type queryRequest struct {
	Query string `json:"query"`
}

// changeRequest is one simulated rule change.
type changeRequest struct {
	Policy string `json:"policy,omitempty"`
	Rule   string `json:"rule"`
	Insert bool   `json:"insert"`
}

// simulateRequest is the body of POST /api/v1/policies/{name}/simulate.
type simulateRequest struct {
	Query   string          `json:"query"`
	Changes []changeRequest `json:"changes"`
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	Policies    int    `json:"policies"`
	Datasources int    `json:"datasources"`
}

// errorResponse carries an error message.
type errorResponse struct {
	Error string `json:"error"`
}

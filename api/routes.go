package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// ProofsEndpoint is the endpoint for submitting and listing presence proofs
	ProofsEndpoint = "/proofs"
	// AnchorURLParam names the network school identifier in routes
	AnchorURLParam = "networkSchoolId"
	// ProofsByAnchorEndpoint lists the proofs of a single group
	ProofsByAnchorEndpoint = "/proofs/school/{" + AnchorURLParam + "}"
	// GroupsEndpoint is the endpoint for creating and listing groups
	GroupsEndpoint = "/groups"
	// GroupEndpoint is the endpoint to get a single group's info
	GroupEndpoint = "/groups/{" + AnchorURLParam + "}"
	// DemographicsEndpoint serves the aggregated statistics of a group
	DemographicsEndpoint = "/demographics/{" + AnchorURLParam + "}"
	// MetricsEndpoint exposes the prometheus metrics
	MetricsEndpoint = "/metrics"
)

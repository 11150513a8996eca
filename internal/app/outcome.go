package service

// Outcome is the result of handling one inbound event.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeCredited
	OutcomeRejected
	OutcomeIgnored
	OutcomeUnknownIdentity
	OutcomePublished
	OutcomeReconciled
)

var outcomeNames = map[Outcome]string{
	OutcomeFailed:          "failed",
	OutcomeCredited:        "credited",
	OutcomeRejected:        "rejected",
	OutcomeIgnored:         "ignored",
	OutcomeUnknownIdentity: "unknown_identity",
	OutcomePublished:       "published",
	OutcomeReconciled:      "reconciled",
}

var outcomeTokens = map[Outcome]string{
	OutcomeCredited:        "OK",
	OutcomeRejected:        "nope",
	OutcomeIgnored:         "nothing to do here",
	OutcomeUnknownIdentity: "omergersh i dunno you!",
	OutcomePublished:       "mmm points.",
	OutcomeReconciled:      "done",
}

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Token is the plain-text body returned to the webhook sender.
func (o Outcome) Token() string { return outcomeTokens[o] }

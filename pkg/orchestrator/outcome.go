package orchestrator

import "github.com/pario-ai/inserter/pkg/provider"

// OutcomeKind is the result class of one HandlePrompt call.
type OutcomeKind int

const (
	// Resolved carries text ready for insertion.
	Resolved OutcomeKind = iota
	// CredentialMissing means no credential was configured.
	CredentialMissing
	// Failed means the provider call failed; see Outcome.Failure.
	Failed
)

func (k OutcomeKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case CredentialMissing:
		return "credential_missing"
	default:
		return "failed"
	}
}

// MessageCredentialMissing is shown when no credential is configured.
const MessageCredentialMissing = "Please set your API key in the plugin settings."

// Outcome is what HandlePrompt emits. Text is set only when Kind is
// Resolved; Failure and Err only when Kind is Failed.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Cached  bool
	Failure provider.Kind
	Err     error
}

// Message returns the user-facing text for a non-resolved outcome.
func (o Outcome) Message() string {
	switch o.Kind {
	case Resolved:
		return ""
	case CredentialMissing:
		return MessageCredentialMissing
	default:
		return o.Failure.Message()
	}
}

func resolved(text string, cached bool) Outcome {
	return Outcome{Kind: Resolved, Text: text, Cached: cached}
}

func failed(err error) Outcome {
	return Outcome{Kind: Failed, Failure: provider.KindOf(err), Err: err}
}

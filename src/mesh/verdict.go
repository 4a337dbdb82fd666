package mesh

// Verdict is a handler's decision about an inbound message. It controls both
// local processing and whether the transport keeps relaying the message.
type Verdict int

const (
	// Accept processes the message locally (where applicable) and lets the
	// transport relay it to other peers.
	Accept Verdict = iota
	// Reject drops the message and flags the sender as misbehaving at the
	// transport layer. Reserved for malformed or forged messages.
	Reject
	// Ignore drops the message locally without penalizing the sender. Used
	// for expired or duplicate messages that other peers may still want.
	Ignore
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Ignore:
		return "ignore"
	}
	return "unknown"
}

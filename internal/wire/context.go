package wire

// contextState is the tagged variant replacing the implicit `ready` /
// `requestInProgress` booleans the original design mixed together (§9
// Design Notes: "Ownership of the request queue"). Every transition is one
// of these four states, in this order.
type contextState int

const (
	// stateParsing: the parser has begun this request but not finished it.
	stateParsing contextState = iota
	// stateReady: parsing finished (successfully or with an error); the
	// request is eligible for dispatch once it reaches the queue front.
	stateReady
	// stateDispatched: the handler has been invoked for this request and
	// has not yet returned / flushed its response.
	stateDispatched
	// stateComplete: the response has been flushed; the entry is retired
	// and due for removal from the queue.
	stateComplete
)

// RequestContext pairs one Request with its Response as they travel
// through the pipeline queue (§3). Entries are created in wire order by
// HTTPRequestParser's Begin callback and retired in the same order once
// their Response is flushed, enforcing invariant 2 (pipelining order).
type RequestContext struct {
	Request  *Request
	Response *Response

	state  contextState
	status int
	reason string
}

func newRequestContext() *RequestContext {
	return &RequestContext{
		Request:  newRequest(),
		Response: newResponse(),
	}
}

// reset clears rc for reuse by a future pipelined request.
func (rc *RequestContext) reset() {
	rc.Request.reset()
	rc.Response.reset()
	rc.state = stateParsing
	rc.status = 0
	rc.reason = ""
}

// Ready reports whether parsing has finished for this entry (§3 `ready`).
func (rc *RequestContext) Ready() bool { return rc.state >= stateReady }

// Status is 0 on a successful parse, or the parser's failure status
// (§3 `status`).
func (rc *RequestContext) Status() int { return rc.status }

// Reason is the diagnostic string accompanying a non-zero Status
// (§3 `reason`).
func (rc *RequestContext) Reason() string { return rc.reason }

// Failed reports whether this entry's request failed to parse.
func (rc *RequestContext) Failed() bool { return rc.status != 0 }

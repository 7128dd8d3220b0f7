package domain

import "time"

// NotificationJob is one ticket's worth of sign, compose and send work.
// Jobs live only for the duration of the message that produced them.
type NotificationJob struct {
	MessageID string
	Topic     Topic
	Ticket    Ticket
	Subject   string
	Reason    string
}

// JobState is the terminal state of a job.
type JobState string

const (
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
	JobSkipped JobState = "skipped"
)

// JobResult records how a job ended. Reason is empty for JobDone.
type JobResult struct {
	TicketID string
	State    JobState
	Reason   string
	Err      error
	Latency  time.Duration
}

// MessageState is the terminal state of an inbound message.
type MessageState string

const (
	MessageAcknowledged MessageState = "acknowledged"
	MessageDropped      MessageState = "dropped"
)

// Report summarises the processing of one inbound message.
type Report struct {
	MessageID string
	Topic     Topic
	FlightID  string
	State     MessageState
	Reason    string
	Jobs      []JobResult
}

// Count returns how many jobs reached the given state.
func (r Report) Count(state JobState) int {
	n := 0
	for _, j := range r.Jobs {
		if j.State == state {
			n++
		}
	}
	return n
}

// Message is a composed notification ready for the sender.
type Message struct {
	FromName    string
	FromAddress string
	ToName      string
	ToAddress   string
	Subject     string
	HTMLBody    string
}
